package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/crimson-sun/apsdiag/internal/config"
	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/engine/anomaly"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/importance"
	"github.com/crimson-sun/apsdiag/internal/engine/sanitizer"
	"github.com/crimson-sun/apsdiag/internal/engine/stats"
	"github.com/crimson-sun/apsdiag/internal/engine/taxonomy"
	"github.com/crimson-sun/apsdiag/internal/output"
	"github.com/crimson-sun/apsdiag/internal/output/chart"
	"github.com/crimson-sun/apsdiag/internal/output/file"
	"github.com/crimson-sun/apsdiag/internal/output/multi"
	"github.com/crimson-sun/apsdiag/internal/output/stdout"
	"github.com/crimson-sun/apsdiag/internal/output/text"
	"github.com/crimson-sun/apsdiag/internal/output/webhook"
	"github.com/crimson-sun/apsdiag/internal/server"
	"github.com/crimson-sun/apsdiag/internal/store"
	"github.com/crimson-sun/apsdiag/internal/telemetry"

	// Register batch sources.
	_ "github.com/crimson-sun/apsdiag/internal/connector/file"
	_ "github.com/crimson-sun/apsdiag/internal/connector/gcs"
	_ "github.com/crimson-sun/apsdiag/internal/connector/influx"
	_ "github.com/crimson-sun/apsdiag/internal/connector/remote"
)

func buildEngine(c config.Config, l *slog.Logger, opts ...engine.Option) (*engine.Engine, error) {
	tax, err := taxonomy.New(taxonomy.DefaultRoots())
	if err != nil {
		return nil, fmt.Errorf("build taxonomy: %w", err)
	}

	san := sanitizer.New(sanitizer.Config{
		LabelColumn:     c.Sanitizer.LabelColumn,
		MaxMissingRatio: c.Sanitizer.MaxMissingRatio,
		LabelMode:       c.Sanitizer.LabelMode,
	}, l)
	det := anomaly.New(anomaly.Config{
		Threshold:     c.Anomaly.Threshold,
		TopCorrelated: c.Anomaly.TopCorrelated,
	}, l)
	k := c.Classifier
	cls := classifier.New(classifier.Config{
		Trees:             k.Trees,
		MaxDepth:          k.MaxDepth,
		MinSamplesLeaf:    k.MinSamplesLeaf,
		Seed:              k.Seed,
		TestRatio:         k.TestRatio,
		ClassWeight:       k.ClassWeight,
		DecisionThreshold: k.DecisionThreshold,
		Workers:           k.Workers,
	}, l)

	opts = append([]engine.Option{engine.WithLogger(l)}, opts...)
	return engine.New(san, det, cls, importance.New(tax, k.TopSensors), stats.New(l), opts...), nil
}

// buildOutput opens every configured target. A single target is returned
// as is; several are fanned out through multi.
func buildOutput(c config.Config) (output.Output, error) {
	v := output.ParseVerbosity(c.Output.Verbosity)
	var outs []output.Output
	closeAll := func() {
		for _, o := range outs {
			o.Close()
		}
	}

	for _, target := range c.Output.Targets {
		switch target {
		case "stdout":
			outs = append(outs, stdout.New(v, c.Output.Pretty))
		case "text":
			outs = append(outs, text.New())
		case "file":
			o, err := file.New(c.Output.FilePath, v, file.WithMaxSize(c.Output.MaxSize))
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("open file output: %w", err)
			}
			outs = append(outs, o)
		case "webhook":
			outs = append(outs, webhook.New(c.Output.WebhookURL, v, webhook.WithTimeout(c.Output.Timeout)))
		case "chart":
			o, err := chart.New(c.Output.ChartDir)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("open chart output: %w", err)
			}
			outs = append(outs, o)
		default:
			closeAll()
			return nil, fmt.Errorf("unknown output %q", target)
		}
	}

	switch len(outs) {
	case 0:
		return nil, errors.New("no output configured")
	case 1:
		return outs[0], nil
	default:
		return multi.New(outs...), nil
	}
}

func connectorConfig(c config.Config) connector.ConnectorConfig {
	return connector.ConnectorConfig{
		Provider: c.Connector.Provider,
		APIKey:   c.Connector.APIKey,
		Endpoint: c.Connector.Endpoint,
		Path:     c.Connector.Path,
		Extra:    c.Connector.Extra,
	}
}

func openStore(c config.Config, l *slog.Logger) (*store.ModelStore, error) {
	return store.Open(store.Config{
		Path:     c.Store.Path,
		InMemory: c.Store.InMemory,
		Logger:   l,
	})
}

func telemetryConfig(c config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:    "apsdiag",
		ServiceVersion: version,
		Exporter:       c.Telemetry.Exporter,
		OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		OTLPInsecure:   c.Telemetry.OTLPInsecure,
		SampleRatio:    c.Telemetry.SampleRatio,
		Writer:         os.Stderr,
	}
}

func serverConfig(c config.Config) server.Config {
	s := c.Server
	return server.Config{
		Addr:            s.Addr,
		ServiceName:     "apsdiag",
		MaxUploadBytes:  s.MaxUploadBytes,
		RateLimit:       s.RateLimit,
		RateBurst:       s.RateBurst,
		SessionTTL:      s.SessionTTL,
		MaxSessions:     s.MaxSessions,
		ShutdownTimeout: s.ShutdownTimeout,
		Verbosity:       output.ParseVerbosity(c.Output.Verbosity),
	}
}
