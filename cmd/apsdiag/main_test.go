package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/apsdiag/internal/config"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func readReports(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open reports: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("report is not JSON: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestGenerateThenAnalyze(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "aps.csv")
	reports := filepath.Join(dir, "reports.jsonl")
	t.Setenv("APSDIAG_TREES", "10")
	t.Setenv("APSDIAG_LOG_LEVEL", "error")
	t.Setenv("APSDIAG_OUTPUT_FILE", reports)
	t.Setenv("APSDIAG_STORE_PATH", filepath.Join(dir, "models"))

	if err := execute(t, "generate", "--rows", "300", "--seed", "5", "--file", batch); err != nil {
		t.Fatalf("generate: %v", err)
	}
	data, err := os.ReadFile(batch)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 301 {
		t.Fatalf("expected header + 300 rows, got %d lines", lines)
	}

	if err := execute(t, "analyze", batch, "--output", "file", "--save-model", "fleet"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	got := readReports(t, reports)
	if len(got) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(got))
	}
	for _, section := range []string{"sanitization", "anomalies", "classification", "importance", "crossReference"} {
		if _, ok := got[0][section]; !ok {
			t.Errorf("report missing %q", section)
		}
	}

	flagSaveModel = ""
	if err := execute(t, "importance", batch, "--output", "file", "--model", "fleet"); err != nil {
		t.Fatalf("importance with stored model: %v", err)
	}
	got = readReports(t, reports)
	if len(got) != 2 {
		t.Fatalf("expected a second report, got %d", len(got))
	}
	if _, ok := got[1]["importance"]; !ok {
		t.Error("importance report has no ranking")
	}
	flagModel = ""
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	t.Setenv("APSDIAG_LOG_LEVEL", "error")
	t.Setenv("APSDIAG_TREES", "0")
	err := execute(t, "stats", "--source", "file", "--path", "missing.csv", "--output", "stdout")
	if err == nil || !strings.Contains(err.Error(), "APSDIAG_TREES") {
		t.Fatalf("expected validation error naming APSDIAG_TREES, got %v", err)
	}
}

func TestBuildOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Targets = []string{"stdout", "file", "chart"}
	cfg.Output.FilePath = filepath.Join(dir, "r.jsonl")
	cfg.Output.ChartDir = filepath.Join(dir, "charts")
	out, err := buildOutput(cfg)
	if err != nil {
		t.Fatalf("buildOutput: %v", err)
	}
	defer out.Close()

	cfg.Output.Targets = []string{"stdout", "kafka"}
	if _, err := buildOutput(cfg); err == nil {
		t.Fatal("expected error for an unknown target")
	}
}
