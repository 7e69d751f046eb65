package main

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/metrics"
	"github.com/crimson-sun/apsdiag/internal/output/async"
	"github.com/crimson-sun/apsdiag/internal/server"
	"github.com/crimson-sun/apsdiag/internal/telemetry"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnosis API over HTTP",
	Long: `Starts the HTTP API. Clients upload a CSV batch to /api/upload and then
call /api/detect-anomalies, /api/classify-faults, /api/root-cause and
/api/visualization-data with the returned session ID. /api/analyze runs the
full diagnosis in one request and forwards the report to the configured
outputs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = flagAddr
	}
	if err := validate(cfg, true); err != nil {
		return err
	}
	ctx := cmd.Context()

	shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return err
	}
	defer flush(shutdown)

	ms, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer ms.Close()

	m := metrics.New()
	eng, err := buildEngine(cfg, logger, engine.WithMetrics(m))
	if err != nil {
		return err
	}

	out, err := buildOutput(cfg)
	if err != nil {
		return err
	}
	sink := async.New(out, async.WithLogger(logger), async.WithDropOnFull())
	defer sink.Close()

	srv := server.New(eng, serverConfig(cfg),
		server.WithStore(ms),
		server.WithMetrics(m),
		server.WithSink(sink),
		server.WithLogger(logger),
	)
	return srv.Run(ctx)
}
