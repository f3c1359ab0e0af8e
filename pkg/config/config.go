package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/pocketcalc/pkg/telemetry"
)

// Config is the pcalc application configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" json:"service"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Events  EventsConfig  `yaml:"events" json:"events"`
	REPL    REPLConfig    `yaml:"repl" json:"repl"`

	// Source is the file the configuration was loaded from, if any.
	Source string `yaml:"-" json:"-"`
}

// ServiceConfig identifies the process in telemetry.
type ServiceConfig struct {
	Name        string            `yaml:"name" json:"name" validate:"required"`
	Environment string            `yaml:"environment" json:"environment" validate:"required,oneof=development staging production"`
	Attributes  map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level" validate:"required,oneof=trace debug info warn error fatal"`
	Format   string `yaml:"format" json:"format" validate:"required,oneof=console json"`
	Output   string `yaml:"output" json:"output" validate:"required"`
	Caller   bool   `yaml:"caller" json:"caller"`
	Sampling bool   `yaml:"sampling" json:"sampling"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	Exporter      string            `yaml:"exporter" json:"exporter" validate:"required,oneof=otlp stdout none"`
	Endpoint      string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	SamplingRate  float64           `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`
	ExportTimeout string            `yaml:"export_timeout,omitempty" json:"export_timeout,omitempty" validate:"omitempty,duration"`
	Insecure      bool              `yaml:"insecure" json:"insecure"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen,omitempty" json:"listen,omitempty" validate:"omitempty,hostname_port"`
	Path    string `yaml:"path" json:"path" validate:"required,startswith=/"`
}

// EventsConfig configures telemetry event delivery.
type EventsConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	Async      bool `yaml:"async" json:"async"`
	BufferSize int  `yaml:"buffer_size" json:"buffer_size" validate:"gte=1"`
}

// REPLConfig configures the interactive keypad.
type REPLConfig struct {
	Prompt string `yaml:"prompt" json:"prompt" validate:"required"`

	// Trace prints every display effect, not only the final display.
	Trace bool `yaml:"trace" json:"trace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "pcalc",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: "30s",
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		REPL: REPLConfig{
			Prompt: "pcalc",
		},
	}
}

// Preset returns the built-in configuration for an environment. An empty
// env gives Default; "development" and "production" start from the
// matching telemetry presets.
func Preset(env string) (*Config, error) {
	switch env {
	case "":
		return Default(), nil
	case "development", "production":
		return fromTelemetry(telemetryPreset(env)), nil
	default:
		return nil, fmt.Errorf("unknown environment preset %q (must be development or production)", env)
	}
}

// telemetryPreset returns the telemetry defaults for an environment.
func telemetryPreset(env string) *telemetry.Config {
	switch env {
	case "development":
		return telemetry.DevelopmentConfig()
	case "production":
		return telemetry.ProductionConfig()
	default:
		return telemetry.DefaultConfig()
	}
}

// fromTelemetry builds an application configuration from telemetry
// settings.
func fromTelemetry(tc *telemetry.Config) *Config {
	cfg := Default()
	cfg.Service.Name = tc.ServiceName
	cfg.Service.Environment = tc.Environment

	cfg.Logging = LoggingConfig{
		Level:    tc.Logging.Level,
		Format:   tc.Logging.Format,
		Output:   tc.Logging.Output,
		Caller:   tc.Logging.EnableCaller,
		Sampling: tc.Logging.EnableSampling,
	}
	cfg.Tracing = TracingConfig{
		Enabled:       tc.Tracing.Enabled,
		Exporter:      tc.Tracing.Exporter,
		Endpoint:      tc.Tracing.Endpoint,
		SamplingRate:  tc.Tracing.SamplingRate,
		ExportTimeout: tc.Tracing.ExportTimeout.String(),
		Insecure:      tc.Tracing.Insecure,
	}
	cfg.Metrics = MetricsConfig{
		Enabled: tc.Metrics.Enabled,
		Listen:  tc.Metrics.ListenAddress,
		Path:    tc.Metrics.Path,
	}
	cfg.Events = EventsConfig{
		Enabled:    tc.Events.Enabled,
		Async:      tc.Events.EnableAsync,
		BufferSize: tc.Events.BufferSize,
	}
	return cfg
}

// newValidator returns a validator with the custom tags used by Config.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

// Load reads a configuration file on top of the defaults. YAML (.yaml,
// .yml) and CUE (.cue) files are supported. An empty path returns the
// defaults. LOG_LEVEL overrides the configured log level.
func Load(path string) (*Config, error) {
	return LoadPreset("", path)
}

// LoadPreset is Load starting from the preset for env instead of the
// defaults.
func LoadPreset(env, path string) (*Config, error) {
	cfg, err := Preset(env)
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		case ".cue":
			err = decodeCUE(data, path, cfg)
		default:
			err = fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeCUE evaluates a CUE document and merges it into cfg. Fields the
// document leaves out keep their current values.
func decodeCUE(data []byte, path string, cfg *Config) error {
	val := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return err
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return err
	}

	raw, err := val.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, cfg)
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ToTelemetry converts the configuration for telemetry.NewTelemetry.
// Settings without a counterpart here, such as the log time format or the
// event batch size, come from the preset for the service environment.
func (c *Config) ToTelemetry(version string) *telemetry.Config {
	tc := telemetryPreset(c.Service.Environment)

	tc.ServiceName = c.Service.Name
	tc.ServiceVersion = version
	tc.Environment = c.Service.Environment
	for k, v := range c.Service.Attributes {
		tc.ResourceAttributes[k] = v
	}

	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output
	tc.Logging.EnableCaller = c.Logging.Caller
	tc.Logging.EnableSampling = c.Logging.Sampling

	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure
	if d, err := time.ParseDuration(c.Tracing.ExportTimeout); err == nil {
		tc.Tracing.ExportTimeout = d
	}
	for k, v := range c.Tracing.Headers {
		tc.Tracing.Headers[k] = v
	}

	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.Listen
	tc.Metrics.Path = c.Metrics.Path

	tc.Events.Enabled = c.Events.Enabled
	tc.Events.EnableAsync = c.Events.Async
	tc.Events.BufferSize = c.Events.BufferSize

	return tc
}
