package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines polling parameters.
type Config struct {
	// TickSeconds is the polling period. Occurrences must fall on multiples
	// of it to be observed.
	TickSeconds int `json:"tick_seconds" yaml:"tick_seconds"`
	// Workers bounds the number of concurrent evaluations per tick.
	Workers int `json:"workers" yaml:"workers"`
	// HorizonHours limits the look-ahead for the next occurrence reported
	// with each due event. Zero means unlimited.
	HorizonHours int `json:"horizon_hours" yaml:"horizon_hours"`
	// MaxCatchUpTicks is how many missed ticks are replayed after a stall.
	MaxCatchUpTicks int `json:"max_catch_up_ticks" yaml:"max_catch_up_ticks"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 60
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.HorizonHours == 0 {
		c.HorizonHours = 24 * 366
	}
}

// Validate checks the ranges of every field.
func (c Config) Validate() error {
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.HorizonHours < 0 {
		return fmt.Errorf("horizon_hours must not be negative")
	}
	if c.MaxCatchUpTicks < 0 {
		return fmt.Errorf("max_catch_up_ticks must not be negative")
	}
	return nil
}

// Tick returns the polling period.
func (c Config) Tick() time.Duration { return time.Duration(c.TickSeconds) * time.Second }

// Horizon returns the look-ahead window.
func (c Config) Horizon() time.Duration { return time.Duration(c.HorizonHours) * time.Hour }

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return DecodeConfig(f, strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	return cfg, nil
}
