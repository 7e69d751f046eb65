// Package file reads a batch from a local CSV export.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/model"
)

func init() {
	connector.Register("file", func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for local CSV files. The path is
// taken from ConnectorConfig.Path, falling back to Endpoint.
type Connector struct{}

func (c *Connector) Fetch(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) (model.RawBatch, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.Endpoint
	}
	if path == "" {
		return model.RawBatch{}, fmt.Errorf("file connector: no path configured")
	}
	if err := ctx.Err(); err != nil {
		return model.RawBatch{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("file connector: %w", err)
	}
	defer f.Close()
	return connector.ReadCSV(f, "file", params.Limit)
}
