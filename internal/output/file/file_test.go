package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

func testReport(source string) model.Report {
	return model.Report{
		Source: source,
		Sanitization: model.SanitizationSummary{
			Rows: 4, Features: 2, Columns: []string{"aa_000", "ab_000"},
		},
		Anomalies: &model.AnomalyReport{
			TotalSamples: 4, Anomalies: 1, AnomalyRate: 25, MajorAnomalies: 1, Threshold: 3,
			Flags:   []bool{false, false, true, false},
			ZScores: [][]model.OptFloat{{model.Some(0.2), model.None()}},
		},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testReport("file")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	lines := readLines(t, path)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		var r model.Report
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
		if r.Source != "file" || r.Anomalies.Anomalies != 1 {
			t.Errorf("line %d: report = %+v", i, r)
		}
	}
}

func TestAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for i := 0; i < 2; i++ {
		out, err := New(path, output.Minimal)
		if err != nil {
			t.Fatal(err)
		}
		out.Write(context.Background(), testReport("run"))
		out.Close()
	}
	if n := len(readLines(t, path)); n != 2 {
		t.Fatalf("got %d lines, want 2", n)
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	// Each line is a few hundred bytes, so every write after the first rotates.
	out, err := New(path, output.Standard, WithMaxSize(200))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testReport("rot")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	for _, suffix := range []string{".1", ".4"} {
		if _, err := os.Stat(path + suffix); os.IsNotExist(err) {
			t.Errorf("expected rotated file %s to exist", suffix)
		}
	}
	if _, err := os.Stat(path + ".5"); !os.IsNotExist(err) {
		t.Error("unexpected fifth rotation")
	}
	if n := len(readLines(t, path)); n != 1 {
		t.Errorf("current file has %d lines, want 1", n)
	}
}

func TestWriteVisibleBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard, WithSync())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer out.Close()

	if err := out.Write(context.Background(), testReport("visible")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	lines := readLines(t, path)
	if len(lines) != 1 || !strings.Contains(lines[0], `"visible"`) {
		t.Errorf("expected the report on disk before Close, got %q", lines)
	}
}

func TestGenerationsCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	out, err := New(path, output.Standard, WithMaxSize(200), WithGenerations(2))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := out.Write(context.Background(), testReport("gen")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected current file plus 2 generations, got %d files", len(entries))
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("generation beyond the cap was kept")
	}
}

func TestVerbosityMinimalStripsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Minimal)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testReport("min"))
	out.Close()

	var r map[string]any
	json.Unmarshal([]byte(readLines(t, path)[0]), &r)
	anomalies := r["anomalies"].(map[string]any)
	if _, ok := anomalies["flags"]; ok {
		t.Error("Minimal verbosity should strip 'flags'")
	}
	if _, ok := anomalies["zScores"]; ok {
		t.Error("Minimal verbosity should strip 'zScores'")
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Write(context.Background(), testReport("conc"))
		}()
	}
	wg.Wait()
	out.Close()

	if n := len(readLines(t, path)); n != 50 {
		t.Errorf("got %d lines, want 50", n)
	}
}

func TestNewBadPath(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing", "out.jsonl"), output.Standard); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
