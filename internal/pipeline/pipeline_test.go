package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/engine/anomaly"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/importance"
	"github.com/crimson-sun/apsdiag/internal/engine/sanitizer"
	"github.com/crimson-sun/apsdiag/internal/engine/stats"
	"github.com/crimson-sun/apsdiag/internal/engine/taxonomy"
	"github.com/crimson-sun/apsdiag/internal/engine/testdata"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// --- mocks ---

// mockConnector returns a fixed batch, or err when set.
type mockConnector struct {
	batch model.RawBatch
	err   error
	calls int
}

func (m *mockConnector) Fetch(_ context.Context, _ connector.ConnectorConfig, _ connector.QueryParams) (model.RawBatch, error) {
	m.calls++
	return m.batch, m.err
}

// mockOutput records written reports.
type mockOutput struct {
	reports []model.Report
	err     error
	closed  bool
}

func (m *mockOutput) Write(_ context.Context, r model.Report) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockOutput) Close() error {
	m.closed = true
	return nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	tax, err := taxonomy.New(taxonomy.DefaultRoots())
	if err != nil {
		t.Fatalf("failed to create taxonomy: %v", err)
	}
	cfg := classifier.DefaultConfig()
	cfg.Trees = 15
	return engine.New(
		sanitizer.New(sanitizer.DefaultConfig(), nil),
		anomaly.New(anomaly.DefaultConfig(), nil),
		classifier.New(cfg, nil),
		importance.New(tax, 0),
		stats.New(nil),
	)
}

func run(t *testing.T, batch model.RawBatch, opts ...Option) (*engine.Analysis, *mockOutput, error) {
	t.Helper()
	out := &mockOutput{}
	p := New(&mockConnector{batch: batch}, newTestEngine(t), out, opts...)
	a, err := p.Run(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{})
	return a, out, err
}

// --- tests ---

func TestRunAnalyzeWritesOneReport(t *testing.T) {
	a, out, err := run(t, testdata.Generate(400, 7))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out.reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(out.reports))
	}
	r := out.reports[0]
	if r.Anomalies == nil || r.Statistics == nil || r.Classification == nil || r.Importance == nil || r.CrossReference == nil {
		t.Fatalf("full report missing a section: %+v", r)
	}
	if a.Model == nil {
		t.Fatal("analysis should carry the trained model")
	}
}

func TestRunModes(t *testing.T) {
	tests := []struct {
		mode  Mode
		check func(r model.Report) bool
	}{
		{ModeAnomalies, func(r model.Report) bool {
			return r.Anomalies != nil && r.Statistics == nil && r.Classification == nil
		}},
		{ModeStats, func(r model.Report) bool {
			return r.Statistics != nil && r.Anomalies == nil && r.Classification == nil
		}},
		{ModeTrain, func(r model.Report) bool {
			return r.Classification != nil && r.Importance == nil && r.Anomalies == nil
		}},
		{ModeImportance, func(r model.Report) bool {
			return r.Importance != nil && r.Classification == nil && len(r.Importance.TopSensors) == importance.DefaultTopN
		}},
	}
	batch := testdata.Generate(300, 3)
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			_, out, err := run(t, batch, WithMode(tt.mode))
			if err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if len(out.reports) != 1 {
				t.Fatalf("got %d reports, want 1", len(out.reports))
			}
			if !tt.check(out.reports[0]) {
				t.Fatalf("unexpected sections for %s: %+v", tt.mode, out.reports[0])
			}
			if out.reports[0].Sanitization.Rows != 300 {
				t.Fatalf("sanitization summary missing: %+v", out.reports[0].Sanitization)
			}
		})
	}
}

func TestRunWithExistingModel(t *testing.T) {
	trained, _, err := run(t, testdata.Generate(400, 11), WithMode(ModeTrain))
	if err != nil {
		t.Fatal(err)
	}

	a, out, err := run(t, testdata.Generate(200, 12), WithModel(trained.Model))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if a.Model != trained.Model {
		t.Fatal("scoring run should reuse the given model")
	}
	c := out.reports[0].Classification
	if c == nil || c.TestSize != 200 {
		t.Fatalf("expected every row scored, got %+v", c)
	}

	_, out, err = run(t, testdata.Generate(50, 13), WithMode(ModeImportance), WithModel(trained.Model))
	if err != nil {
		t.Fatal(err)
	}
	if out.reports[0].Importance == nil {
		t.Fatal("importance should come from the given model")
	}
}

func TestRunUnlabeledSkipsClassification(t *testing.T) {
	_, out, err := run(t, testdata.Unlabeled(testdata.Generate(200, 5)))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if out.reports[0].Classification != nil {
		t.Fatal("unlabeled batch should not be classified")
	}

	if _, _, err := run(t, testdata.Unlabeled(testdata.Generate(200, 5)), WithMode(ModeTrain)); !errors.Is(err, model.ErrSchema) {
		t.Fatalf("train on unlabeled batch: expected ErrSchema, got %v", err)
	}
}

func TestRunErrorsWriteNothing(t *testing.T) {
	fetchErr := errors.New("bucket not found")
	out := &mockOutput{}
	p := New(&mockConnector{err: fetchErr}, newTestEngine(t), out)
	if _, err := p.Run(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	bad := model.RawBatch{Header: []string{"only", "class"}, Rows: [][]string{{"1", "neg"}}}
	if _, _, err := run(t, bad); !errors.Is(err, model.ErrInsufficientFeatures) {
		t.Fatalf("expected ErrInsufficientFeatures, got %v", err)
	}
	if len(out.reports) != 0 {
		t.Fatal("no report should be written on failure")
	}

	if _, _, err := run(t, testdata.Generate(50, 1), WithMode("forecast")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRunOutputError(t *testing.T) {
	writeErr := errors.New("disk full")
	p := New(&mockConnector{batch: testdata.Generate(100, 2)}, newTestEngine(t), &mockOutput{err: writeErr}, WithMode(ModeStats))
	if _, err := p.Run(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); !errors.Is(err, writeErr) {
		t.Fatalf("expected output error, got %v", err)
	}
}

func TestProcessDoesNotWrite(t *testing.T) {
	out := &mockOutput{}
	conn := &mockConnector{}
	p := New(conn, newTestEngine(t), out, WithMode(ModeAnomalies))
	a, err := p.Process(context.Background(), testdata.Generate(100, 4))
	if err != nil {
		t.Fatal(err)
	}
	if a.Report.Anomalies == nil || len(out.reports) != 0 || conn.calls != 0 {
		t.Fatal("Process should analyze without fetching or writing")
	}
}

func TestClose(t *testing.T) {
	out := &mockOutput{}
	p := New(&mockConnector{}, newTestEngine(t), out)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !out.closed {
		t.Fatal("Close should close the output")
	}
}
