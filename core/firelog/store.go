// Package firelog records every due dispatch occurrence handled by the
// scheduler, whether it was delivered or only evaluated as a dry run.
package firelog

import (
	"context"
	"time"
)

// LogRecord captures one firing of a dispatch occurrence.
type LogRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Occurrence  time.Time `json:"occurrence"`
	MicrogridID uint64    `json:"microgrid_id"`
	DispatchID  uint64    `json:"dispatch_id"`
	Type        string    `json:"type"`
	DryRun      bool      `json:"dry_run"`
	CommandID   string    `json:"command_id,omitempty"`
	Delivered   bool      `json:"delivered"`
	Error       string    `json:"error,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything. Start and End bound the occurrence instant inclusively.
type LogQuery struct {
	Start       time.Time
	End         time.Time
	MicrogridID uint64
	DispatchID  uint64
	Type        string
	// Limit caps the number of records returned; zero means no cap.
	Limit int
}

// Matches reports whether r passes every filter of q.
func (q LogQuery) Matches(r LogRecord) bool {
	if !q.Start.IsZero() && r.Occurrence.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Occurrence.After(q.End) {
		return false
	}
	if q.MicrogridID != 0 && r.MicrogridID != q.MicrogridID {
		return false
	}
	if q.DispatchID != 0 && r.DispatchID != q.DispatchID {
		return false
	}
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	return true
}

func (q LogQuery) full(n int) bool { return q.Limit > 0 && n >= q.Limit }

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
