package gcs

import (
	"testing"

	"github.com/crimson-sun/apsdiag/internal/connector"
)

func TestLocation(t *testing.T) {
	tests := []struct {
		name           string
		cfg            connector.ConnectorConfig
		bucket, object string
		wantErr        bool
	}{
		{"endpoint and path", connector.ConnectorConfig{Endpoint: "fleet", Path: "/2026/aps.csv"}, "fleet", "2026/aps.csv", false},
		{"gs url", connector.ConnectorConfig{Path: "gs://fleet/exports/aps.csv"}, "fleet", "exports/aps.csv", false},
		{"url wins", connector.ConnectorConfig{Endpoint: "other", Path: "gs://fleet/a.csv"}, "fleet", "a.csv", false},
		{"no object", connector.ConnectorConfig{Endpoint: "fleet"}, "", "", true},
		{"bucket only url", connector.ConnectorConfig{Path: "gs://fleet"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, o, err := location(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if b != tt.bucket || o != tt.object {
				t.Fatalf("got %q %q, want %q %q", b, o, tt.bucket, tt.object)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	if n := len(clientOptions(connector.ConnectorConfig{})); n != 0 {
		t.Fatalf("default options = %d, want 0", n)
	}
	cfg := connector.ConnectorConfig{
		APIKey: "k",
		Extra:  map[string]string{"endpoint": "http://localhost:4443/storage/v1/", "anonymous": "true"},
	}
	if n := len(clientOptions(cfg)); n != 2 {
		t.Fatalf("emulator options = %d, want 2", n)
	}
}

func TestRegistered(t *testing.T) {
	if _, err := connector.Get("gcs"); err != nil {
		t.Fatal(err)
	}
}
