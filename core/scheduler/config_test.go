package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeConfig(t *testing.T) {
	y := "tick_seconds: 30\nworkers: 8\nhorizon_hours: 48\n"
	cfg, err := DecodeConfig(strings.NewReader(y), "yaml")
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if cfg.Tick() != 30*time.Second || cfg.Workers != 8 || cfg.Horizon() != 48*time.Hour {
		t.Fatalf("unexpected config %+v", cfg)
	}
	cfg, err = DecodeConfig(strings.NewReader(`{"tick_seconds":5,"max_catch_up_ticks":3}`), "json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if cfg.TickSeconds != 5 || cfg.MaxCatchUpTicks != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := DecodeConfig(strings.NewReader(""), "toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.yml")
	if err := os.WriteFile(path, []byte("workers: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.SetDefaults()
	if cfg.Workers != 2 || cfg.TickSeconds != 60 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	bad := []Config{
		{TickSeconds: 0, Workers: 1},
		{TickSeconds: 1, Workers: 0},
		{TickSeconds: 1, Workers: 1, HorizonHours: -1},
		{TickSeconds: 1, Workers: 1, MaxCatchUpTicks: -1},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}
