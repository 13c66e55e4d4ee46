package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid-dispatch/core/firelog"
)

func records() []firelog.LogRecord {
	occ := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	return []firelog.LogRecord{
		{Timestamp: occ.Add(time.Second), Occurrence: occ, MicrogridID: 1, DispatchID: 4, Type: "charge", CommandID: "c-1", Delivered: true},
		{Timestamp: occ.Add(time.Second), Occurrence: occ, MicrogridID: 1, DispatchID: 5, Type: "curtail, soft", Error: "publish: timeout"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01T06:00:01Z", "2024-03-01T06:00:00Z", "1", "4", "charge", "false", "true", "c-1", ""}, rows[1])
	assert.Equal(t, "curtail, soft", rows[2][4])
	assert.Equal(t, "publish: timeout", rows[2][8])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}
