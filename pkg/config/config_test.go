package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
environment: development
storage:
  type: memory
symbols:
  - AAPL
  - MSFT
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []int{3, 5, 8, 13, 21, 34}
	if len(c.Pipeline.Intervals) != len(want) {
		t.Fatalf("intervals = %v, want %v", c.Pipeline.Intervals, want)
	}
	for i, iv := range want {
		if c.Pipeline.Intervals[i] != iv {
			t.Fatalf("intervals = %v, want %v", c.Pipeline.Intervals, want)
		}
	}
	if c.Pipeline.Mode != "incremental" {
		t.Errorf("mode = %q, want incremental", c.Pipeline.Mode)
	}
	if c.Pipeline.Workers != 4 {
		t.Errorf("workers = %d, want 4", c.Pipeline.Workers)
	}
	if c.Pipeline.RecentBars != 34 {
		t.Errorf("recent_bars = %d, want 34", c.Pipeline.RecentBars)
	}
	if c.Pipeline.CacheTTL != 15*time.Minute {
		t.Errorf("cache_ttl = %s, want 15m", c.Pipeline.CacheTTL)
	}
	if c.Redis.Prefix != "barforge" {
		t.Errorf("redis prefix = %q, want barforge", c.Redis.Prefix)
	}
}

func TestLoadExplicitValuesWinOverDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
storage:
  type: clickhouse
pipeline:
  intervals: [3, 8]
  mode: reset
  workers: 8
symbols: [TSLA]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Pipeline.Intervals) != 2 || c.Pipeline.Intervals[1] != 8 {
		t.Fatalf("intervals = %v, want [3 8]", c.Pipeline.Intervals)
	}
	if c.Pipeline.Mode != "reset" {
		t.Errorf("mode = %q, want reset", c.Pipeline.Mode)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing environment", `
storage: {type: memory}
symbols: [AAPL]
`},
		{"bad storage type", `
environment: development
storage: {type: sqlite}
symbols: [AAPL]
`},
		{"bad mode", `
environment: development
storage: {type: memory}
pipeline: {mode: rebuild}
symbols: [AAPL]
`},
		{"descending intervals", `
environment: development
storage: {type: memory}
pipeline:
  intervals: [5, 3]
symbols: [AAPL]
`},
		{"zero interval", `
environment: development
storage: {type: memory}
pipeline:
  intervals: [0, 3]
symbols: [AAPL]
`},
		{"negative retention", `
environment: development
storage: {type: memory}
pipeline:
  consolidation_retention_days: -5
symbols: [AAPL]
`},
		{"no symbols", `
environment: development
storage: {type: memory}
`},
		{"feed without key", `
environment: development
storage: {type: memory}
symbols: [AAPL]
feed: {enabled: true}
`},
		{"kafka without brokers", `
environment: development
storage: {type: memory}
symbols: [AAPL]
kafka: {enabled: true}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "NVDA,AMD")
	t.Setenv("STORAGE", "memory")
	t.Setenv("PIPELINE_MODE", "reset")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Symbols) != 2 || c.Symbols[0] != "NVDA" {
		t.Fatalf("symbols = %v, want [NVDA AMD]", c.Symbols)
	}
	if c.Pipeline.Mode != "reset" {
		t.Errorf("mode = %q, want reset", c.Pipeline.Mode)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
