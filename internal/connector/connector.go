package connector

import (
	"context"
	"time"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Connector defines the interface every batch source must implement.
type Connector interface {
	// Fetch reads one complete batch. The batch is fully materialized before
	// it is returned; sources never stream partial batches.
	Fetch(ctx context.Context, cfg ConnectorConfig, params QueryParams) (model.RawBatch, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	APIKey   string
	Endpoint string // base URL or bucket, depending on provider
	Path     string // file path, URL path or object name
	Extra    map[string]string
}

// QueryParams narrows what a source returns. Time bounds only apply to
// time-series sources.
type QueryParams struct {
	Start  time.Time
	End    time.Time
	Limit  int    // maximum rows; 0 means no limit
	Filter string // provider-specific selector, e.g. an InfluxDB measurement
}
