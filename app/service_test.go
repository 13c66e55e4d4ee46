package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid-dispatch/config"
	"github.com/kilianp07/microgrid-dispatch/core/events"
	"github.com/kilianp07/microgrid-dispatch/core/factory"
	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0"},
		Store:  config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "dispatches.db")},
		FiringLog: factory.ModuleConfig{
			Type: "jsonl",
			Conf: map[string]any{"path": filepath.Join(dir, "firings.jsonl")},
		},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceEndToEnd(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Minute).Add(2 * time.Minute)
	dd, err := svc.Dispatches.Create(ctx, 1, model.Dispatch{
		Type:      "discharge",
		StartTime: start,
		Selector:  model.CategoryBattery,
		IsActive:  true,
	})
	require.NoError(t, err)

	select {
	case change := <-svc.changes:
		assert.Equal(t, events.KindCreated, change.Kind)
		assert.Equal(t, dd.ID, change.DispatchID)
	case <-time.After(time.Second):
		t.Fatal("lifecycle event not published")
	}

	ev, err := svc.Scheduler.Tick(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Due)

	select {
	case due := <-svc.events:
		assert.Equal(t, dd.ID, due.DispatchID)
		rec := svc.Pipeline.Handle(ctx, due)
		assert.False(t, rec.Delivered, "no broker configured")
	case <-time.After(time.Second):
		t.Fatal("due event not published")
	}

	recs, err := svc.firings.Query(ctx, firelog.LogQuery{DispatchID: dd.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Occurrence.Equal(start))
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreConfig{Backend: "memory"}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "redis"
	_, err := New(cfg)
	assert.Error(t, err)
}
