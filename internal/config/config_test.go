package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every APSDIAG_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "APSDIAG_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Connector.Provider != "file" {
		t.Fatalf("expected default provider 'file', got %q", cfg.Connector.Provider)
	}
	if cfg.Connector.Extra != nil {
		t.Fatalf("expected nil Extra when no provider vars set, got %v", cfg.Connector.Extra)
	}
	if cfg.Anomaly.Threshold != 3.0 {
		t.Fatalf("threshold = %v, want 3", cfg.Anomaly.Threshold)
	}
	k := cfg.Classifier
	if k.Trees != 100 || k.MaxDepth != 10 || k.Seed != 42 || k.DecisionThreshold != 0.5 || k.TopSensors != 10 {
		t.Fatalf("classifier defaults = %+v", k)
	}
	if cfg.Sanitizer.LabelColumn != "class" || cfg.Sanitizer.MaxMissingRatio != 0.5 {
		t.Fatalf("sanitizer defaults = %+v", cfg.Sanitizer)
	}
	if len(cfg.Output.Targets) != 1 || cfg.Output.Targets[0] != "stdout" || cfg.Output.Pretty {
		t.Fatalf("output defaults = %+v", cfg.Output)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("APSDIAG_SOURCE", "influx")
	t.Setenv("APSDIAG_INFLUX_ORG", "fleet")
	t.Setenv("APSDIAG_INFLUX_BUCKET", "aps")
	t.Setenv("APSDIAG_TREES", "250")
	t.Setenv("APSDIAG_ANOMALY_THRESHOLD", "2.5")
	t.Setenv("APSDIAG_OUTPUT", "stdout, chart ,")
	t.Setenv("APSDIAG_OUTPUT_PRETTY", "true")
	t.Setenv("APSDIAG_SESSION_TTL", "15m")
	t.Setenv("APSDIAG_LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Connector.Provider != "influx" {
		t.Fatalf("provider = %q", cfg.Connector.Provider)
	}
	if cfg.Connector.Extra["org"] != "fleet" || cfg.Connector.Extra["bucket"] != "aps" {
		t.Fatalf("extra = %v", cfg.Connector.Extra)
	}
	if cfg.Classifier.Trees != 250 || cfg.Anomaly.Threshold != 2.5 {
		t.Fatalf("numeric overrides not applied: %+v %+v", cfg.Classifier, cfg.Anomaly)
	}
	if got := cfg.Output.Targets; len(got) != 2 || got[0] != "stdout" || got[1] != "chart" {
		t.Fatalf("targets = %q", got)
	}
	if !cfg.Output.Pretty || cfg.Server.SessionTTL != 15*time.Minute || cfg.Log.Level != "debug" {
		t.Fatalf("overrides not applied: %+v %+v %+v", cfg.Output, cfg.Server, cfg.Log)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("APSDIAG_TREES", "lots")
	t.Setenv("APSDIAG_SESSION_TTL", "forever")
	t.Setenv("APSDIAG_OUTPUT_PRETTY", "sure")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Classifier.Trees != 100 || cfg.Server.SessionTTL != time.Hour || cfg.Output.Pretty {
		t.Fatal("unparseable env values should keep the previous value")
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "apsdiag.yaml")
	yml := `
connector:
  provider: gcs
  endpoint: fleet-exports
  path: 2026/aps.csv
  extra:
    anonymous: "true"
classifier:
  trees: 40
  seed: 7
output:
  targets: [stdout, file]
  file_path: /tmp/reports.jsonl
server:
  session_ttl: 30m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APSDIAG_SEED", "9")
	t.Setenv("APSDIAG_GCS_CREDENTIALS", "/etc/sa.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Connector.Provider != "gcs" || cfg.Connector.Endpoint != "fleet-exports" {
		t.Fatalf("connector = %+v", cfg.Connector)
	}
	if cfg.Connector.Extra["anonymous"] != "true" || cfg.Connector.Extra["credentials"] != "/etc/sa.json" {
		t.Fatalf("extra should merge file and env: %v", cfg.Connector.Extra)
	}
	if cfg.Classifier.Trees != 40 || cfg.Classifier.Seed != 9 {
		t.Fatalf("classifier = %+v (env should win over file)", cfg.Classifier)
	}
	if cfg.Classifier.MaxDepth != 10 {
		t.Fatal("unset file keys should keep defaults")
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Fatalf("session ttl = %v", cfg.Server.SessionTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("classifier: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

// --- Validation tests ---

func validConfig() Config {
	cfg := Default()
	cfg.Connector.Path = "aps.csv"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected nil error for valid config, got: %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold", func(c *Config) { c.Anomaly.Threshold = 0 }, "APSDIAG_ANOMALY_THRESHOLD"},
		{"decision threshold", func(c *Config) { c.Classifier.DecisionThreshold = 1 }, "APSDIAG_DECISION_THRESHOLD"},
		{"trees", func(c *Config) { c.Classifier.Trees = 0 }, "APSDIAG_TREES"},
		{"test ratio", func(c *Config) { c.Classifier.TestRatio = 1 }, "APSDIAG_TEST_RATIO"},
		{"class weight", func(c *Config) { c.Classifier.ClassWeight = "heavy" }, "APSDIAG_CLASS_WEIGHT"},
		{"missing ratio", func(c *Config) { c.Sanitizer.MaxMissingRatio = 1.5 }, "APSDIAG_MAX_MISSING_RATIO"},
		{"label mode", func(c *Config) { c.Sanitizer.LabelMode = "ordinal" }, "APSDIAG_LABEL_MODE"},
		{"verbosity", func(c *Config) { c.Output.Verbosity = "verbose" }, "APSDIAG_VERBOSITY"},
		{"output target", func(c *Config) { c.Output.Targets = []string{"stdout", "kafka"} }, "APSDIAG_OUTPUT"},
		{"no targets", func(c *Config) { c.Output.Targets = nil }, "APSDIAG_OUTPUT"},
		{"webhook url", func(c *Config) { c.Output.WebhookURL = "not a url" }, "APSDIAG_WEBHOOK_URL"},
		{"provider", func(c *Config) { c.Connector.Provider = "vercel" }, "APSDIAG_SOURCE"},
		{"trace", func(c *Config) { c.Telemetry.Exporter = "zipkin" }, "APSDIAG_TRACE"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "APSDIAG_LOG_LEVEL"},
		{"file path", func(c *Config) { c.Connector.Path = "" }, "APSDIAG_PATH"},
		{"file output", func(c *Config) { c.Output.Targets = []string{"file"} }, "APSDIAG_OUTPUT_FILE"},
		{"chart output", func(c *Config) { c.Output.Targets = []string{"chart"} }, "APSDIAG_CHART_DIR"},
		{"webhook output", func(c *Config) { c.Output.Targets = []string{"webhook"} }, "APSDIAG_WEBHOOK_URL"},
		{"store", func(c *Config) { c.Store.Path = "" }, "APSDIAG_STORE_PATH"},
		{"http source", func(c *Config) { c.Connector.Provider = "http" }, "APSDIAG_ENDPOINT"},
		{"influx source", func(c *Config) { c.Connector.Provider = "influx" }, "APSDIAG_INFLUX_ORG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Anomaly.Threshold = -1
	cfg.Output.Verbosity = "loud"
	cfg.Store.Path = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple bad fields")
	}
	msg := err.Error()
	for _, want := range []string{"APSDIAG_ANOMALY_THRESHOLD", "APSDIAG_VERBOSITY", "APSDIAG_STORE_PATH"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got: %v", want, msg)
		}
	}
}

// --- getenv helpers ---

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		set      bool
		fallback int
		want     int
	}{
		{"empty uses fallback", "", false, 1000, 1000},
		{"valid int", "500", true, 1000, 500},
		{"zero", "0", true, 1000, 0},
		{"invalid falls back", "abc", true, 1000, 1000},
		{"negative", "-1", true, 1000, -1},
	}

	const key = "APSDIAG_TEST_GETENVINT"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(key, tt.envVal)
			} else {
				os.Unsetenv(key)
			}
			if got := getenvInt(key, tt.fallback); got != tt.want {
				t.Errorf("getenvInt(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a,,b , c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("splitList = %q", got)
	}
	if splitList(" , ") != nil {
		t.Fatal("expected nil for an empty list")
	}
}

func TestValidateServer_IgnoresSource(t *testing.T) {
	cfg := Default()
	cfg.Connector.Provider = "influx"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to require influx settings")
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer should skip source checks, got: %v", err)
	}
	cfg.Server.MaxSessions = 0
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "APSDIAG_MAX_SESSIONS") {
		t.Fatalf("expected APSDIAG_MAX_SESSIONS error, got: %v", err)
	}
}
