// Package gcs reads a CSV export from a Google Cloud Storage object.
//
// ConnectorConfig.Endpoint holds the bucket and Path the object name.
// Extra keys: "credentials" (service account JSON file), "endpoint"
// (alternate API endpoint, e.g. an emulator) and "anonymous" ("true" to
// skip authentication for public buckets).
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/model"
)

func init() {
	connector.Register("gcs", func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for GCS objects.
type Connector struct{}

func (c *Connector) Fetch(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) (model.RawBatch, error) {
	bucket, object, err := location(cfg)
	if err != nil {
		return model.RawBatch{}, err
	}

	client, err := storage.NewClient(ctx, clientOptions(cfg)...)
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("gcs connector: creating client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("gcs connector: opening gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	return connector.ReadCSV(r, "gcs", params.Limit)
}

// location resolves the bucket and object. A "gs://bucket/object" URL in
// Path takes precedence over Endpoint.
func location(cfg connector.ConnectorConfig) (bucket, object string, err error) {
	bucket, object = cfg.Endpoint, strings.TrimPrefix(cfg.Path, "/")
	if rest, ok := strings.CutPrefix(cfg.Path, "gs://"); ok {
		bucket, object, _ = strings.Cut(rest, "/")
	}
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs connector: bucket and object are required")
	}
	return bucket, object, nil
}

func clientOptions(cfg connector.ConnectorConfig) []option.ClientOption {
	var opts []option.ClientOption
	if ep := cfg.Extra["endpoint"]; ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	switch {
	case cfg.Extra["anonymous"] == "true":
		opts = append(opts, option.WithoutAuthentication())
	case cfg.Extra["credentials"] != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Extra["credentials"]))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return opts
}
