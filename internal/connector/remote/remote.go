// Package remote fetches a batch over HTTP(S). The export is CSV by default;
// Extra["format"] = "json" accepts {"header": [...], "rows": [[...]]}.
package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/connector/httpclient"
	"github.com/crimson-sun/apsdiag/internal/model"
)

func init() {
	connector.Register("http", func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for HTTP exports.
type Connector struct{}

type jsonBatch struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

func (c *Connector) Fetch(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) (model.RawBatch, error) {
	if cfg.Endpoint == "" {
		return model.RawBatch{}, fmt.Errorf("http connector: no endpoint configured")
	}
	client := httpclient.New(cfg.Endpoint, cfg.APIKey)

	query := url.Values{}
	for k, v := range cfg.Extra {
		if k != "format" {
			query.Set(k, v)
		}
	}

	if cfg.Extra["format"] == "json" {
		var jb jsonBatch
		if err := client.GetJSON(ctx, cfg.Path, query, &jb); err != nil {
			return model.RawBatch{}, fmt.Errorf("http connector: %w", err)
		}
		rows := jb.Rows
		if params.Limit > 0 && len(rows) > params.Limit {
			rows = rows[:params.Limit]
		}
		return model.RawBatch{Source: "http", Header: jb.Header, Rows: rows}, nil
	}

	body, err := client.Open(ctx, cfg.Path, query)
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("http connector: %w", err)
	}
	defer body.Close()
	return connector.ReadCSV(body, "http", params.Limit)
}
