package firelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid-dispatch/core/factory"
)

var base = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

func records() []LogRecord {
	return []LogRecord{
		{Timestamp: base, Occurrence: base, MicrogridID: 1, DispatchID: 10, Type: "charge", CommandID: "a", Delivered: true},
		{Timestamp: base, Occurrence: base.Add(time.Hour), MicrogridID: 1, DispatchID: 11, Type: "discharge", DryRun: true},
		{Timestamp: base, Occurrence: base.Add(2 * time.Hour), MicrogridID: 2, DispatchID: 20, Type: "charge", Error: "broker down"},
	}
}

func backends(t *testing.T) map[string]LogStore {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "firings.jsonl"))
	require.NoError(t, err)
	rotating, err := NewRotatingJSONLStore(filepath.Join(dir, "rot", "firings.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "firings.db"))
	require.NoError(t, err)
	return map[string]LogStore{"jsonl": jsonl, "rotating": rotating, "sqlite": sqlite}
}

func TestStoresAppendQuery(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = store.Close() }()
			for _, r := range records() {
				require.NoError(t, store.Append(ctx, r))
			}

			all, err := store.Query(ctx, LogQuery{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "a", all[0].CommandID)
			assert.True(t, all[0].Occurrence.Equal(base))

			byGrid, err := store.Query(ctx, LogQuery{MicrogridID: 1})
			require.NoError(t, err)
			assert.Len(t, byGrid, 2)

			byType, err := store.Query(ctx, LogQuery{Type: "charge", Start: base.Add(time.Minute)})
			require.NoError(t, err)
			require.Len(t, byType, 1)
			assert.Equal(t, uint64(20), byType[0].DispatchID)
			assert.Equal(t, "broker down", byType[0].Error)

			window, err := store.Query(ctx, LogQuery{Start: base, End: base.Add(time.Hour)})
			require.NoError(t, err)
			assert.Len(t, window, 2, "bounds are inclusive")

			limited, err := store.Query(ctx, LogQuery{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			none, err := store.Query(ctx, LogQuery{DispatchID: 99})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestRotatingJSONLStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	for i := 0; i < 100; i++ {
		if err := store.Append(context.Background(), LogRecord{Occurrence: base}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	files, _ := filepath.Glob(path + "*")
	if len(files) == 0 {
		t.Fatalf("expected log file")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(factory.ModuleConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	dir := t.TempDir()
	s, err = New(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "a.jsonl")}})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = New(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "b.jsonl"), "max_size_mb": 5}})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(factory.ModuleConfig{Type: "kafka"})
	assert.Error(t, err)
}

func TestLogQueryMatches(t *testing.T) {
	q := LogQuery{Type: "charge"}
	assert.True(t, q.Matches(records()[0]))
	assert.False(t, q.Matches(records()[1]))
}
