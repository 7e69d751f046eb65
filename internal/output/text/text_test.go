package text

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/crimson-sun/apsdiag/internal/model"
)

func report() model.Report {
	return model.Report{
		Source: "aps.csv",
		Sanitization: model.SanitizationSummary{
			Rows: 1000, Features: 16, LabelMode: model.LabelMulticlass,
			Dropped: []model.DroppedColumn{{Name: "junk", Reason: "non_numeric"}},
		},
		Anomalies: &model.AnomalyReport{
			TotalSamples: 1000, Anomalies: 42, AnomalyRate: 4.2,
			CriticalAnomalies: 5, MajorAnomalies: 12, MinorAnomalies: 25, Threshold: 3,
		},
		Classification: &model.ClassificationReport{
			Accuracy: 0.95, Precision: 0.94, Recall: 0.95, F1: 0.945,
			ROCAUC: model.None(), TrainSize: 800, TestSize: 200,
		},
		CrossReference: &model.CrossReference{PredictedFaults: 40, TruePositives: 38, FalsePositives: 2, FlaggedPredictedFaults: 30},
		Importance: &model.FeatureImportance{
			TopSensors: []model.SensorImportance{{Name: "aa_000", Importance: 0.31, Description: "Air pressure (primary)"}},
		},
	}
}

func TestRenderPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).Write(context.Background(), report()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected ANSI escapes in non-TTY output: %q", out)
	}
	for _, want := range []string{
		"APS diagnosis · aps.csv",
		"1000 rows, 16 sensors, multiclass labels",
		"dropped 1 columns",
		"42 of 1000 samples (4.20%)",
		"critical 5",
		"accuracy 0.950",
		"trained on 800, tested on 200",
		"predicted faults 40 (true 38, false 2)",
		"aa_000",
		"Air pressure (primary)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "roc auc") {
		t.Error("roc auc should be omitted when undefined")
	}
}

func TestRenderMinimalReport(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Write(context.Background(), model.Report{})
	if !strings.HasPrefix(buf.String(), "APS diagnosis\n") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	if strings.Contains(buf.String(), "Classifier") {
		t.Fatal("absent sections should not render")
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Fatal("buffer is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Fatal("regular file is not a terminal")
	}
}
