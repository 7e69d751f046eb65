package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all apsdiag configuration. Values come from defaults, then
// an optional YAML file, then APSDIAG_* environment variables.
type Config struct {
	Connector  ConnectorConfig  `yaml:"connector"`
	Sanitizer  SanitizerConfig  `yaml:"sanitizer"`
	Anomaly    AnomalyConfig    `yaml:"anomaly"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Output     OutputConfig     `yaml:"output"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// ConnectorConfig selects and configures the batch source.
type ConnectorConfig struct {
	Provider string            `yaml:"provider" env:"APSDIAG_SOURCE" validate:"oneof=file http gcs influx"`
	APIKey   string            `yaml:"api_key" env:"APSDIAG_API_KEY"`
	Endpoint string            `yaml:"endpoint" env:"APSDIAG_ENDPOINT"`
	Path     string            `yaml:"path" env:"APSDIAG_PATH"`
	Filter   string            `yaml:"filter" env:"APSDIAG_FILTER"`
	Limit    int               `yaml:"limit" env:"APSDIAG_LIMIT" validate:"gte=0"`
	Extra    map[string]string `yaml:"extra"`
}

// SanitizerConfig tunes cleaning of raw batches.
type SanitizerConfig struct {
	LabelColumn     string  `yaml:"label_column" env:"APSDIAG_LABEL_COLUMN" validate:"required"`
	MaxMissingRatio float64 `yaml:"max_missing_ratio" env:"APSDIAG_MAX_MISSING_RATIO" validate:"gt=0,lte=1"`
	LabelMode       string  `yaml:"label_mode" env:"APSDIAG_LABEL_MODE" validate:"oneof=auto binary multiclass"`
}

// AnomalyConfig tunes the z-score detector.
type AnomalyConfig struct {
	Threshold     float64 `yaml:"threshold" env:"APSDIAG_ANOMALY_THRESHOLD" validate:"gt=0"`
	TopCorrelated int     `yaml:"top_correlated" env:"APSDIAG_ANOMALY_TOP_CORRELATED" validate:"gte=0"`
}

// ClassifierConfig tunes the random forest and its evaluation.
type ClassifierConfig struct {
	Trees             int     `yaml:"trees" env:"APSDIAG_TREES" validate:"gte=1,lte=5000"`
	MaxDepth          int     `yaml:"max_depth" env:"APSDIAG_MAX_DEPTH" validate:"gte=1,lte=64"`
	MinSamplesLeaf    int     `yaml:"min_samples_leaf" env:"APSDIAG_MIN_SAMPLES_LEAF" validate:"gte=1"`
	Seed              int64   `yaml:"seed" env:"APSDIAG_SEED"`
	TestRatio         float64 `yaml:"test_ratio" env:"APSDIAG_TEST_RATIO" validate:"gte=0,lt=1"` // 0 picks by label mode
	ClassWeight       string  `yaml:"class_weight" env:"APSDIAG_CLASS_WEIGHT" validate:"oneof=auto balanced none"`
	DecisionThreshold float64 `yaml:"decision_threshold" env:"APSDIAG_DECISION_THRESHOLD" validate:"gt=0,lt=1"`
	Workers           int     `yaml:"workers" env:"APSDIAG_WORKERS" validate:"gte=0"`
	TopSensors        int     `yaml:"top_sensors" env:"APSDIAG_TOP_SENSORS" validate:"gte=1"`
}

// OutputConfig selects report destinations.
type OutputConfig struct {
	Targets    []string      `yaml:"targets" env:"APSDIAG_OUTPUT" validate:"min=1,dive,oneof=stdout text file webhook chart"`
	Verbosity  string        `yaml:"verbosity" env:"APSDIAG_VERBOSITY" validate:"oneof=minimal standard full"`
	Pretty     bool          `yaml:"pretty" env:"APSDIAG_OUTPUT_PRETTY"`
	FilePath   string        `yaml:"file_path" env:"APSDIAG_OUTPUT_FILE"`
	MaxSize    int64         `yaml:"max_size" env:"APSDIAG_OUTPUT_MAX_SIZE" validate:"gte=0"`
	WebhookURL string        `yaml:"webhook_url" env:"APSDIAG_WEBHOOK_URL" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" env:"APSDIAG_WEBHOOK_TIMEOUT" validate:"gte=0"`
	ChartDir   string        `yaml:"chart_dir" env:"APSDIAG_CHART_DIR"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"APSDIAG_ADDR" validate:"required"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"APSDIAG_MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimit       float64       `yaml:"rate_limit" env:"APSDIAG_RATE_LIMIT" validate:"gte=0"` // requests/s, 0 disables
	RateBurst       int           `yaml:"rate_burst" env:"APSDIAG_RATE_BURST" validate:"gte=0"`
	SessionTTL      time.Duration `yaml:"session_ttl" env:"APSDIAG_SESSION_TTL" validate:"gte=0"`
	MaxSessions     int           `yaml:"max_sessions" env:"APSDIAG_MAX_SESSIONS" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"APSDIAG_SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// StoreConfig locates the model store.
type StoreConfig struct {
	Path     string `yaml:"path" env:"APSDIAG_STORE_PATH"`
	InMemory bool   `yaml:"in_memory" env:"APSDIAG_STORE_IN_MEMORY"`
}

// TelemetryConfig selects the trace exporter.
type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter" env:"APSDIAG_TRACE" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"APSDIAG_OTLP_ENDPOINT"`
	OTLPInsecure bool    `yaml:"otlp_insecure" env:"APSDIAG_OTLP_INSECURE"`
	SampleRatio  float64 `yaml:"sample_ratio" env:"APSDIAG_TRACE_SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level" env:"APSDIAG_LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"APSDIAG_LOG_FORMAT" validate:"oneof=json text"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Connector: ConnectorConfig{Provider: "file"},
		Sanitizer: SanitizerConfig{LabelColumn: "class", MaxMissingRatio: 0.5, LabelMode: "auto"},
		Anomaly:   AnomalyConfig{Threshold: 3.0},
		Classifier: ClassifierConfig{
			Trees:             100,
			MaxDepth:          10,
			MinSamplesLeaf:    1,
			Seed:              42,
			ClassWeight:       "auto",
			DecisionThreshold: 0.5,
			TopSensors:        10,
		},
		Output: OutputConfig{
			Targets:   []string{"stdout"},
			Verbosity: "standard",
			Timeout:   10 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  64 << 20,
			RateLimit:       10,
			RateBurst:       20,
			SessionTTL:      time.Hour,
			MaxSessions:     100,
			ShutdownTimeout: 10 * time.Second,
		},
		Store:     StoreConfig{Path: "data/models"},
		Telemetry: TelemetryConfig{Exporter: "none", OTLPEndpoint: "localhost:4317", OTLPInsecure: true},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then the environment. It does not validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	c := &cfg.Connector
	c.Provider = getenv("APSDIAG_SOURCE", c.Provider)
	c.APIKey = getenv("APSDIAG_API_KEY", c.APIKey)
	c.Endpoint = getenv("APSDIAG_ENDPOINT", c.Endpoint)
	c.Path = getenv("APSDIAG_PATH", c.Path)
	c.Filter = getenv("APSDIAG_FILTER", c.Filter)
	c.Limit = getenvInt("APSDIAG_LIMIT", c.Limit)
	c.Extra = loadConnectorExtra(c.Extra)

	s := &cfg.Sanitizer
	s.LabelColumn = getenv("APSDIAG_LABEL_COLUMN", s.LabelColumn)
	s.MaxMissingRatio = getenvFloat("APSDIAG_MAX_MISSING_RATIO", s.MaxMissingRatio)
	s.LabelMode = getenv("APSDIAG_LABEL_MODE", s.LabelMode)

	a := &cfg.Anomaly
	a.Threshold = getenvFloat("APSDIAG_ANOMALY_THRESHOLD", a.Threshold)
	a.TopCorrelated = getenvInt("APSDIAG_ANOMALY_TOP_CORRELATED", a.TopCorrelated)

	k := &cfg.Classifier
	k.Trees = getenvInt("APSDIAG_TREES", k.Trees)
	k.MaxDepth = getenvInt("APSDIAG_MAX_DEPTH", k.MaxDepth)
	k.MinSamplesLeaf = getenvInt("APSDIAG_MIN_SAMPLES_LEAF", k.MinSamplesLeaf)
	k.Seed = int64(getenvInt("APSDIAG_SEED", int(k.Seed)))
	k.TestRatio = getenvFloat("APSDIAG_TEST_RATIO", k.TestRatio)
	k.ClassWeight = getenv("APSDIAG_CLASS_WEIGHT", k.ClassWeight)
	k.DecisionThreshold = getenvFloat("APSDIAG_DECISION_THRESHOLD", k.DecisionThreshold)
	k.Workers = getenvInt("APSDIAG_WORKERS", k.Workers)
	k.TopSensors = getenvInt("APSDIAG_TOP_SENSORS", k.TopSensors)

	o := &cfg.Output
	if v := os.Getenv("APSDIAG_OUTPUT"); v != "" {
		o.Targets = splitList(v)
	}
	o.Verbosity = getenv("APSDIAG_VERBOSITY", o.Verbosity)
	o.Pretty = getenvBool("APSDIAG_OUTPUT_PRETTY", o.Pretty)
	o.FilePath = getenv("APSDIAG_OUTPUT_FILE", o.FilePath)
	o.MaxSize = int64(getenvInt("APSDIAG_OUTPUT_MAX_SIZE", int(o.MaxSize)))
	o.WebhookURL = getenv("APSDIAG_WEBHOOK_URL", o.WebhookURL)
	o.Timeout = getenvDuration("APSDIAG_WEBHOOK_TIMEOUT", o.Timeout)
	o.ChartDir = getenv("APSDIAG_CHART_DIR", o.ChartDir)

	srv := &cfg.Server
	srv.Addr = getenv("APSDIAG_ADDR", srv.Addr)
	srv.MaxUploadBytes = int64(getenvInt("APSDIAG_MAX_UPLOAD_BYTES", int(srv.MaxUploadBytes)))
	srv.RateLimit = getenvFloat("APSDIAG_RATE_LIMIT", srv.RateLimit)
	srv.RateBurst = getenvInt("APSDIAG_RATE_BURST", srv.RateBurst)
	srv.SessionTTL = getenvDuration("APSDIAG_SESSION_TTL", srv.SessionTTL)
	srv.MaxSessions = getenvInt("APSDIAG_MAX_SESSIONS", srv.MaxSessions)
	srv.ShutdownTimeout = getenvDuration("APSDIAG_SHUTDOWN_TIMEOUT", srv.ShutdownTimeout)

	cfg.Store.Path = getenv("APSDIAG_STORE_PATH", cfg.Store.Path)
	cfg.Store.InMemory = getenvBool("APSDIAG_STORE_IN_MEMORY", cfg.Store.InMemory)

	t := &cfg.Telemetry
	t.Exporter = getenv("APSDIAG_TRACE", t.Exporter)
	t.OTLPEndpoint = getenv("APSDIAG_OTLP_ENDPOINT", t.OTLPEndpoint)
	t.OTLPInsecure = getenvBool("APSDIAG_OTLP_INSECURE", t.OTLPInsecure)
	t.SampleRatio = getenvFloat("APSDIAG_TRACE_SAMPLE_RATIO", t.SampleRatio)

	cfg.Log.Level = strings.ToLower(getenv("APSDIAG_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = getenv("APSDIAG_LOG_FORMAT", cfg.Log.Format)
}

// loadConnectorExtra layers provider-specific env vars over extra.
func loadConnectorExtra(extra map[string]string) map[string]string {
	vars := []struct {
		envVar   string
		extraKey string
	}{
		{"APSDIAG_INFLUX_ORG", "org"},
		{"APSDIAG_INFLUX_BUCKET", "bucket"},
		{"APSDIAG_INFLUX_LABEL", "label"},
		{"APSDIAG_GCS_CREDENTIALS", "credentials"},
		{"APSDIAG_GCS_ENDPOINT", "endpoint"},
		{"APSDIAG_GCS_ANONYMOUS", "anonymous"},
		{"APSDIAG_HTTP_FORMAT", "format"},
	}

	for _, v := range vars {
		if val := os.Getenv(v.envVar); val != "" {
			if extra == nil {
				extra = make(map[string]string)
			}
			extra[v.extraKey] = val
		}
	}
	return extra
}

var validate = newValidator()

// newValidator reports fields by their env var so messages point at the
// setting the user can change.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if env := f.Tag.Get("env"); env != "" {
			return env
		}
		return f.Name
	})
	return v
}

// Validate checks field ranges and cross-field requirements and returns
// every problem found, joined.
func (c Config) Validate() error { return c.validate(true) }

// ValidateServer is Validate without the batch source requirements; the
// server receives its batches as uploads.
func (c Config) ValidateServer() error { return c.validate(false) }

func (c Config) validate(source bool) error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: invalid value %v (%s%s)", fe.Field(), fe.Value(), fe.Tag(), paramSuffix(fe.Param())))
		}
	}

	conn := c.Connector
	if !source {
		conn.Provider = ""
	}
	switch conn.Provider {
	case "file":
		if conn.Path == "" && conn.Endpoint == "" {
			errs = append(errs, errors.New("APSDIAG_PATH is required for the file source"))
		}
	case "http":
		if conn.Endpoint == "" {
			errs = append(errs, errors.New("APSDIAG_ENDPOINT is required for the http source"))
		}
	case "gcs":
		if conn.Path == "" {
			errs = append(errs, errors.New("APSDIAG_PATH (object name or gs:// URL) is required for the gcs source"))
		}
	case "influx":
		if conn.Endpoint == "" || conn.Extra["org"] == "" || conn.Extra["bucket"] == "" {
			errs = append(errs, errors.New("APSDIAG_ENDPOINT, APSDIAG_INFLUX_ORG and APSDIAG_INFLUX_BUCKET are required for the influx source"))
		}
		if conn.Filter == "" {
			errs = append(errs, errors.New("APSDIAG_FILTER (measurement) is required for the influx source"))
		}
	}

	for _, target := range c.Output.Targets {
		switch target {
		case "file":
			if c.Output.FilePath == "" {
				errs = append(errs, errors.New("APSDIAG_OUTPUT_FILE is required for the file output"))
			}
		case "webhook":
			if c.Output.WebhookURL == "" {
				errs = append(errs, errors.New("APSDIAG_WEBHOOK_URL is required for the webhook output"))
			}
		case "chart":
			if c.Output.ChartDir == "" {
				errs = append(errs, errors.New("APSDIAG_CHART_DIR is required for the chart output"))
			}
		}
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		errs = append(errs, errors.New("APSDIAG_STORE_PATH is required unless APSDIAG_STORE_IN_MEMORY is set"))
	}

	return errors.Join(errs...)
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
