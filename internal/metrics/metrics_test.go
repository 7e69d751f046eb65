package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("train", time.Second)
		m.BatchDone(nil)
		m.Samples(10)
		m.Anomalies(1, 2, 3, 4.5)
		m.Accuracy("binary", 0.9)
		m.Request("/api/health", 200)
		m.SessionsActive(2)
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.BatchDone(nil)
	m.BatchDone(nil)
	m.BatchDone(errors.New("boom"))
	m.Anomalies(3, 2, 1, 0.6)
	m.Accuracy("multiclass", 0.93)
	m.Request("/api/upload", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.anomalies.WithLabelValues("minor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalies.WithLabelValues("critical")))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.anomalyRate))
	assert.Equal(t, 0.93, testutil.ToFloat64(m.accuracy.WithLabelValues("multiclass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/upload", "200")))
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Samples(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(a.samples))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.samples))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveStage("sanitize", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `apsdiag_stage_duration_seconds_count{stage="sanitize"} 1`)
}
