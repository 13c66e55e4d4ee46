// Package store holds persistent implementations of dispatch.Store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/microgrid-dispatch/core/dispatch"
	"github.com/kilianp07/microgrid-dispatch/core/model"
)

const schema = `CREATE TABLE IF NOT EXISTS dispatches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    microgrid_id INTEGER NOT NULL,
    dispatch TEXT NOT NULL,
    create_time INTEGER NOT NULL,
    modification_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_microgrid ON dispatches (microgrid_id, id);`

// SQLiteStore persists dispatches in a SQLite database. AUTOINCREMENT keeps
// ids from being reused after deletion.
type SQLiteStore struct {
	db *sql.DB
}

var _ dispatch.Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, microgridID uint64, d model.Dispatch, now time.Time) (model.DispatchDetail, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return model.DispatchDetail{}, fmt.Errorf("encode dispatch: %w", err)
	}
	now = now.UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (microgrid_id, dispatch, create_time, modification_time) VALUES (?, ?, ?, ?)`,
		int64(microgridID), string(b), now.UnixNano(), now.UnixNano())
	if err != nil {
		return model.DispatchDetail{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.DispatchDetail{}, err
	}
	return model.DispatchDetail{
		ID:               uint64(id),
		MicrogridID:      microgridID,
		Dispatch:         d.Clone(),
		CreateTime:       now,
		ModificationTime: now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, microgridID, dispatchID uint64) (model.DispatchDetail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, microgrid_id, dispatch, create_time, modification_time FROM dispatches WHERE microgrid_id = ? AND id = ?`,
		int64(microgridID), int64(dispatchID))
	return scanDetail(row)
}

func (s *SQLiteStore) Update(ctx context.Context, microgridID, dispatchID uint64, fn dispatch.MutateFunc, now time.Time) (model.DispatchDetail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DispatchDetail{}, err
	}
	defer func() { _ = tx.Rollback() }()

	dd, err := scanDetail(tx.QueryRowContext(ctx,
		`SELECT id, microgrid_id, dispatch, create_time, modification_time FROM dispatches WHERE microgrid_id = ? AND id = ?`,
		int64(microgridID), int64(dispatchID)))
	if err != nil {
		return model.DispatchDetail{}, err
	}
	next, err := fn(dd.Dispatch.Clone())
	if err != nil {
		return model.DispatchDetail{}, err
	}
	b, err := json.Marshal(next)
	if err != nil {
		return model.DispatchDetail{}, fmt.Errorf("encode dispatch: %w", err)
	}
	if now = now.UTC(); now.After(dd.ModificationTime) {
		dd.ModificationTime = now
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE dispatches SET dispatch = ?, modification_time = ? WHERE id = ?`,
		string(b), dd.ModificationTime.UnixNano(), int64(dispatchID)); err != nil {
		return model.DispatchDetail{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.DispatchDetail{}, err
	}
	dd.Dispatch = next.Clone()
	return dd, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, microgridID, dispatchID uint64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dispatches WHERE microgrid_id = ? AND id = ?`, int64(microgridID), int64(dispatchID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, microgridID uint64) ([]model.DispatchDetail, error) {
	return s.query(ctx,
		`SELECT id, microgrid_id, dispatch, create_time, modification_time FROM dispatches WHERE microgrid_id = ? ORDER BY id`,
		int64(microgridID))
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.DispatchDetail, error) {
	return s.query(ctx,
		`SELECT id, microgrid_id, dispatch, create_time, modification_time FROM dispatches ORDER BY microgrid_id, id`)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]model.DispatchDetail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := make([]model.DispatchDetail, 0)
	for rows.Next() {
		dd, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, dd)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDetail(sc scanner) (model.DispatchDetail, error) {
	var (
		id, mid         int64
		raw             string
		created, edited int64
	)
	if err := sc.Scan(&id, &mid, &raw, &created, &edited); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DispatchDetail{}, dispatch.ErrNotFound
		}
		return model.DispatchDetail{}, err
	}
	var d model.Dispatch
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return model.DispatchDetail{}, fmt.Errorf("decode dispatch %d: %w", id, err)
	}
	return model.DispatchDetail{
		ID:               uint64(id),
		MicrogridID:      uint64(mid),
		Dispatch:         d,
		CreateTime:       time.Unix(0, created).UTC(),
		ModificationTime: time.Unix(0, edited).UTC(),
	}, nil
}
