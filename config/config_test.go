package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/microgrid-dispatch/core/model"
)

const sampleYAML = `server:
  addr: ":9000"
  token: "secret"
store:
  backend: "sqlite"
  path: "/tmp/d.db"
scheduler:
  tick_seconds: 30
  workers: 2
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "dispatch"
  qos: 1
  rate_limit: 5
metrics:
  prometheus_addr: ":2112"
  sinks:
    - type: "prometheus"
firing_log:
  type: "jsonl"
  conf:
    path: "firings.jsonl"
    max_size_mb: 10
logging:
  level: "debug"
sentry:
  dsn: "https://public@example.com/1"
catalog:
  microgrids:
    - id: 1
      components:
        - id: 10
          category: "battery"
        - id: 11
          category: "INVERTER"
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":9000"},
		{"server.token", cfg.Server.Token, "secret"},
		{"server.read_timeout_seconds", cfg.Server.ReadTimeoutSeconds, 10},
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"scheduler.tick_seconds", cfg.Scheduler.TickSeconds, 30},
		{"scheduler.workers", cfg.Scheduler.Workers, 2},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"mqtt.rate_limit", cfg.MQTT.RateLimit, 5.0},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":2112"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"firing_log.type", cfg.FiringLog.Type, "jsonl"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"sentry.dsn", cfg.Sentry.DSN, "https://public@example.com/1"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}

	cat, err := cfg.Catalog.Build()
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.True(t, cat.HasMicrogrid(1))
	assert.False(t, cat.HasMicrogrid(2))
	got, ok := cat.ComponentCategory(1, 10)
	assert.True(t, ok)
	assert.Equal(t, model.CategoryBattery, got)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)
	t.Setenv("K_SERVER__ADDR", ":7000")
	t.Setenv("K_SCHEDULER__WORKERS", "8")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
}

func TestLoadDefaultsJSON(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := Load(writeConfig(t, "config.json", `{"mqtt": {}}`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 60, cfg.Scheduler.TickSeconds)
	assert.Equal(t, "none", cfg.FiringLog.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "production", cfg.Sentry.Environment)
	assert.False(t, cfg.MQTT.Enabled())

	cat, err := cfg.Catalog.Build()
	require.NoError(t, err)
	assert.Nil(t, cat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"store":      "store:\n  backend: redis\n",
		"scheduler":  "scheduler:\n  workers: -1\n",
		"firing_log": "firing_log:\n  type: kafka\n",
		"logging":    "logging:\n  level: chatty\n",
		"sentry":     "sentry:\n  dsn: not-a-dsn\n",
		"mqtt":       "mqtt:\n  qos: 3\n",
		"catalog":    "catalog:\n  microgrids:\n    - id: 1\n      components:\n        - id: 2\n          category: toaster\n",
	}
	for section, data := range cases {
		_, err := Load(writeConfig(t, "config.yaml", data))
		if err == nil {
			t.Fatalf("%s: expected validation error", section)
		}
		if !strings.Contains(err.Error(), section) {
			t.Fatalf("%s: error does not name the section: %v", section, err)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load(writeConfig(t, "config.toml", "")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
