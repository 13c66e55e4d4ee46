package config

import (
	"fmt"
	"net/url"
	"os"
)

// SentryConfig enables error reporting to Sentry. An empty DSN disables it.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// SetDefaults names the environment after APP_ENV when unset.
func (s *SentryConfig) SetDefaults() {
	if s.Environment == "" {
		s.Environment = os.Getenv("APP_ENV")
	}
	if s.Environment == "" {
		s.Environment = "production"
	}
}

// Validate checks the DSN shape and the sample rate range.
func (s SentryConfig) Validate() error {
	if s.TracesSampleRate < 0 || s.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate must be within [0, 1]")
	}
	if s.DSN == "" {
		return nil
	}
	u, err := url.Parse(s.DSN)
	if err != nil {
		return fmt.Errorf("dsn: %w", err)
	}
	if u.Scheme == "" || u.Host == "" || u.User == nil {
		return fmt.Errorf("dsn must look like https://<key>@<host>/<project>")
	}
	return nil
}
