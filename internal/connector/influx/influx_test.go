package influx

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/apsdiag/internal/connector"
)

func TestPivotRecords(t *testing.T) {
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	records := []map[string]any{
		{"result": "_result", "table": int64(0), "_time": ts, "_measurement": "aps", "bb_000": 2.5, "aa_000": int64(7), "class": "neg"},
		{"result": "_result", "table": int64(0), "_time": ts.Add(time.Minute), "_measurement": "aps", "aa_000": int64(9), "class": "pos"},
	}
	b := pivotRecords(records, "class")

	if !reflect.DeepEqual(b.Header, []string{"aa_000", "bb_000", "class"}) {
		t.Fatalf("header = %v", b.Header)
	}
	want := [][]string{{"7", "2.5", "neg"}, {"9", "", "pos"}}
	if !reflect.DeepEqual(b.Rows, want) {
		t.Fatalf("rows = %v, want %v", b.Rows, want)
	}
	if b.Source != "influx" {
		t.Fatalf("source = %q", b.Source)
	}
}

func TestPivotRecordsUnlabeled(t *testing.T) {
	b := pivotRecords([]map[string]any{{"x": 1.0, "y": true}}, "class")
	if !reflect.DeepEqual(b.Header, []string{"x", "y"}) {
		t.Fatalf("header = %v", b.Header)
	}
	if !reflect.DeepEqual(b.Rows[0], []string{"1", "true"}) {
		t.Fatalf("row = %v", b.Rows[0])
	}
}

func TestBuildQuery(t *testing.T) {
	q := buildQuery("fleet", connector.QueryParams{Filter: "aps", Limit: 100})
	for _, want := range []string{`from(bucket: "fleet")`, "start: time(v: 0), stop: now()", `r._measurement == "aps"`, "pivot(", "limit(n: 100)"} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	q = buildQuery("fleet", connector.QueryParams{Filter: "aps", Start: start, End: start.Add(24 * time.Hour)})
	if !strings.Contains(q, "start: 2026-09-01T00:00:00Z, stop: 2026-09-02T00:00:00Z") {
		t.Errorf("range not applied:\n%s", q)
	}
	if strings.Contains(q, "limit(") {
		t.Errorf("unexpected limit:\n%s", q)
	}
}

func TestFetchValidation(t *testing.T) {
	c := &Connector{}
	if _, err := c.Fetch(context.Background(), connector.ConnectorConfig{Endpoint: "http://localhost:8086"}, connector.QueryParams{Filter: "aps"}); err == nil {
		t.Fatal("expected error without org and bucket")
	}
	cfg := connector.ConnectorConfig{Endpoint: "http://localhost:8086", Extra: map[string]string{"org": "o", "bucket": "b"}}
	if _, err := c.Fetch(context.Background(), cfg, connector.QueryParams{}); err == nil {
		t.Fatal("expected error without a measurement")
	}
}
