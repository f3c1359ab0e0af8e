package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Service.Name != "pcalc" || cfg.Logging.Level != "info" || cfg.REPL.Prompt != "pcalc" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Source != "" {
		t.Errorf("source = %q, want empty", cfg.Source)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := writeFile(t, "pcalc.yaml", `
service:
  environment: production
  attributes:
    team: calc
logging:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: otlp
  endpoint: localhost:4317
  export_timeout: 5s
metrics:
  listen: ":9464"
repl:
  trace: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Service.Name != "pcalc" {
		t.Errorf("name should keep default, got %q", cfg.Service.Name)
	}
	if cfg.Service.Environment != "production" || cfg.Logging.Format != "json" {
		t.Errorf("values not applied: %+v", cfg)
	}
	if !cfg.REPL.Trace || cfg.REPL.Prompt != "pcalc" {
		t.Errorf("repl = %+v", cfg.REPL)
	}
	if cfg.Source != path {
		t.Errorf("source = %q", cfg.Source)
	}

	tc := cfg.ToTelemetry("1.2.3")
	if tc.ServiceVersion != "1.2.3" || tc.Environment != "production" {
		t.Errorf("telemetry service = %s %s", tc.ServiceVersion, tc.Environment)
	}
	if tc.Tracing.ExportTimeout != 5*time.Second || tc.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("tracing = %+v", tc.Tracing)
	}
	if tc.Metrics.ListenAddress != ":9464" {
		t.Errorf("listen = %q", tc.Metrics.ListenAddress)
	}
	if tc.ResourceAttributes["team"] != "calc" {
		t.Errorf("attributes = %v", tc.ResourceAttributes)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("converted config invalid: %v", err)
	}
}

func TestLoad_CUE(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := writeFile(t, "pcalc.cue", `
service: environment: "staging"
logging: {
	level:  "warn"
	format: "json"
}
repl: prompt: "calc"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Service.Environment != "staging" || cfg.Logging.Level != "warn" || cfg.REPL.Prompt != "calc" {
		t.Errorf("values not applied: %+v", cfg)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("output should keep default, got %q", cfg.Logging.Output)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad level", "a.yaml", "logging:\n  level: loud\n", "Level"},
		{"otlp without endpoint", "b.yaml", "tracing:\n  exporter: otlp\n", "Endpoint"},
		{"bad duration", "c.yml", "tracing:\n  export_timeout: soon\n", "ExportTimeout"},
		{"bad listen", "d.yaml", "metrics:\n  listen: nope\n", "Listen"},
		{"bad path", "e.yaml", "metrics:\n  path: metrics\n", "Path"},
		{"bad environment", "f.cue", `service: environment: "moon"`, "Environment"},
		{"cue syntax", "g.cue", "service: {", "failed to parse"},
		{"yaml syntax", "h.yaml", "service: [", "failed to parse"},
		{"unknown format", "i.toml", "x = 1", "unsupported config format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPreset(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadPreset("production", "")
	if err != nil {
		t.Fatalf("LoadPreset() error: %v", err)
	}
	if cfg.Service.Environment != "production" || cfg.Logging.Format != "json" || !cfg.Logging.Sampling {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint == "" {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
	if !cfg.Events.Async || cfg.Metrics.Listen != ":9464" {
		t.Errorf("events = %+v, metrics = %+v", cfg.Events, cfg.Metrics)
	}

	tc := cfg.ToTelemetry("1.0.0")
	if tc.Logging.TimeFormat != "unix" {
		t.Errorf("time format = %q, want unix from the production preset", tc.Logging.TimeFormat)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("converted config invalid: %v", err)
	}

	cfg, err = LoadPreset("development", "")
	if err != nil {
		t.Fatalf("LoadPreset() error: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Caller || cfg.Tracing.Exporter != "stdout" {
		t.Errorf("development preset = %+v", cfg)
	}
	if cfg.Tracing.ExportTimeout != "30s" {
		t.Errorf("export timeout = %q", cfg.Tracing.ExportTimeout)
	}
}

func TestPreset_FileOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := writeFile(t, "pcalc.yaml", "logging:\n  format: console\n")
	cfg, err := LoadPreset("production", path)
	if err != nil {
		t.Fatalf("LoadPreset() error: %v", err)
	}
	if cfg.Logging.Format != "console" || cfg.Service.Environment != "production" {
		t.Errorf("file should override the preset: %+v", cfg.Logging)
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, err := Preset("qa"); err == nil || !strings.Contains(err.Error(), "unknown environment preset") {
		t.Errorf("Preset(qa) error = %v", err)
	}
}
