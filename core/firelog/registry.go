package firelog

import (
	"context"

	"github.com/kilianp07/microgrid-dispatch/core/factory"
)

// Config holds the settings shared by the file based backends.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Backends lists the available LogStore implementations by type name.
var Backends = factory.NewRegistry[LogStore]()

func init() {
	Backends.MustRegister("none", func(map[string]any) (LogStore, error) {
		return NopStore{}, nil
	})
	Backends.MustRegister("jsonl", func(conf map[string]any) (LogStore, error) {
		c, err := decode(conf, "firings.jsonl")
		if err != nil {
			return nil, err
		}
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	})
	Backends.MustRegister("sqlite", func(conf map[string]any) (LogStore, error) {
		c, err := decode(conf, "firings.db")
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

func decode(conf map[string]any, defPath string) (Config, error) {
	var c Config
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		c.Path = defPath
	}
	return c, nil
}

// New builds the backend named by cfg.Type. An empty type disables the log.
func New(cfg factory.ModuleConfig) (LogStore, error) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}
	return Backends.Create(cfg)
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) {
	return []LogRecord{}, nil
}
func (NopStore) Close() error { return nil }
