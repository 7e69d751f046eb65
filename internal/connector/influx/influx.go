// Package influx reads a batch from InfluxDB 2.x. Each field of the
// measurement becomes a sensor column; points sharing a timestamp form one
// row.
//
// ConnectorConfig.Endpoint is the server URL and APIKey the token. Extra
// keys: "org", "bucket" and "label" (the field holding the class label,
// default "class"). QueryParams.Filter names the measurement.
package influx

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/model"
)

const defaultLabel = "class"

func init() {
	connector.Register("influx", func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for InfluxDB.
type Connector struct{}

func (c *Connector) Fetch(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) (model.RawBatch, error) {
	org, bucket := cfg.Extra["org"], cfg.Extra["bucket"]
	if cfg.Endpoint == "" || org == "" || bucket == "" {
		return model.RawBatch{}, fmt.Errorf("influx connector: endpoint, org and bucket are required")
	}
	if params.Filter == "" {
		return model.RawBatch{}, fmt.Errorf("influx connector: measurement filter is required")
	}

	client := influxdb2.NewClient(cfg.Endpoint, cfg.APIKey)
	defer client.Close()

	result, err := client.QueryAPI(org).Query(ctx, buildQuery(bucket, params))
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("influx connector: query failed: %w", err)
	}
	defer result.Close()

	var records []map[string]any
	for result.Next() {
		records = append(records, result.Record().Values())
	}
	if result.Err() != nil {
		return model.RawBatch{}, fmt.Errorf("influx connector: reading results: %w", result.Err())
	}

	label := cfg.Extra["label"]
	if label == "" {
		label = defaultLabel
	}
	return pivotRecords(records, label), nil
}

func buildQuery(bucket string, params connector.QueryParams) string {
	start := "time(v: 0)"
	if !params.Start.IsZero() {
		start = params.Start.UTC().Format(time.RFC3339)
	}
	stop := "now()"
	if !params.End.IsZero() {
		stop = params.End.UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n", start, stop)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s)\n", strconv.Quote(params.Filter))
	b.WriteString("  |> pivot(rowKey:[\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("  |> sort(columns: [\"_time\"], desc: false)\n")
	if params.Limit > 0 {
		fmt.Fprintf(&b, "  |> limit(n: %d)\n", params.Limit)
	}
	return b.String()
}

// pivotRecords turns pivoted Flux records into a raw batch. Columns are the
// union of record keys minus Flux bookkeeping ("_"-prefixed, result, table),
// sorted by name with the label column last.
func pivotRecords(records []map[string]any, label string) model.RawBatch {
	seen := map[string]bool{}
	var header []string
	hasLabel := false
	for _, rec := range records {
		for k := range rec {
			if seen[k] || strings.HasPrefix(k, "_") || k == "result" || k == "table" {
				continue
			}
			seen[k] = true
			if k == label {
				hasLabel = true
				continue
			}
			header = append(header, k)
		}
	}
	sort.Strings(header)
	if hasLabel {
		header = append(header, label)
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = cell(rec[col])
		}
		rows[i] = row
	}
	return model.RawBatch{Source: "influx", Header: header, Rows: rows}
}

// cell renders a Flux value; absent values become empty cells and are
// treated as missing downstream.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
