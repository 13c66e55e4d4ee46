// Package export renders firing records for operators and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/microgrid-dispatch/core/firelog"
)

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"timestamp", "occurrence", "microgrid_id", "dispatch_id", "type",
	"dry_run", "delivered", "command_id", "error",
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []firelog.LogRecord) error {
	if records == nil {
		records = []firelog.LogRecord{}
	}
	return json.NewEncoder(w).Encode(records)
}

// WriteCSV writes the records to w in CSV format with a header row.
func WriteCSV(w io.Writer, records []firelog.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Occurrence.UTC().Format(time.RFC3339),
			strconv.FormatUint(r.MicrogridID, 10),
			strconv.FormatUint(r.DispatchID, 10),
			r.Type,
			strconv.FormatBool(r.DryRun),
			strconv.FormatBool(r.Delivered),
			r.CommandID,
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
