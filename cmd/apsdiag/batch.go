package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/pipeline"
	"github.com/crimson-sun/apsdiag/internal/store"
	"github.com/crimson-sun/apsdiag/internal/telemetry"
)

var (
	flagModel     string
	flagSaveModel string
	flagStart     string
	flagEnd       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Run the full diagnosis on one batch",
	Long: `Sanitizes the batch, detects anomalies, computes statistics and, when the
batch is labeled, trains the fault classifier, ranks root-cause sensors and
cross-references predictions with anomaly flags.

With --model the stored classifier scores the batch instead of training.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch(pipeline.ModeAnalyze),
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies [path]",
	Short: "Flag z-score outliers in one batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch(pipeline.ModeAnomalies),
}

var trainCmd = &cobra.Command{
	Use:   "train [path]",
	Short: "Train and evaluate the fault classifier on a labeled batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch(pipeline.ModeTrain),
}

var importanceCmd = &cobra.Command{
	Use:   "importance [path]",
	Short: "Rank root-cause sensors by classifier importance",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch(pipeline.ModeImportance),
}

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Describe a batch: class balance, sensor statistics, label correlations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch(pipeline.ModeStats),
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, trainCmd, importanceCmd} {
		cmd.Flags().StringVar(&flagSaveModel, "save-model", "", "store the trained model under this name")
	}
	for _, cmd := range []*cobra.Command{analyzeCmd, importanceCmd} {
		cmd.Flags().StringVar(&flagModel, "model", "", "score with this stored model instead of training")
	}
	for _, cmd := range []*cobra.Command{analyzeCmd, anomaliesCmd, trainCmd, importanceCmd, statsCmd} {
		cmd.Flags().StringVar(&flagStart, "start", "", "RFC3339 lower time bound for time-series sources")
		cmd.Flags().StringVar(&flagEnd, "end", "", "RFC3339 upper time bound for time-series sources")
	}
}

func runBatch(mode pipeline.Mode) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Connector.Path = args[0]
		}
		if err := validate(cfg, false); err != nil {
			return err
		}
		params, err := queryParams()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
		if err != nil {
			return err
		}
		defer flush(shutdown)

		eng, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		ctor, err := connector.Get(cfg.Connector.Provider)
		if err != nil {
			return err
		}

		var ms *store.ModelStore
		if flagModel != "" || flagSaveModel != "" {
			if ms, err = openStore(cfg, logger); err != nil {
				return err
			}
			defer ms.Close()
		}

		opts := []pipeline.Option{pipeline.WithMode(mode), pipeline.WithLogger(logger)}
		if flagModel != "" {
			m, err := ms.Load(flagModel)
			if err != nil {
				return err
			}
			logger.Info("loaded model", "name", flagModel, "features", len(m.Features()))
			opts = append(opts, pipeline.WithModel(m))
		}

		out, err := buildOutput(cfg)
		if err != nil {
			return err
		}
		p := pipeline.New(ctor(), eng, out, opts...)
		defer p.Close()

		a, err := p.Run(ctx, connectorConfig(cfg), params)
		if err != nil {
			return err
		}

		if flagSaveModel != "" {
			if a.Model == nil {
				return fmt.Errorf("save model %s: %w: batch has no labels", flagSaveModel, model.ErrModelNotTrained)
			}
			if err := ms.Save(flagSaveModel, a.Model); err != nil {
				return err
			}
			logger.Info("model saved", "name", flagSaveModel, "trees", a.Model.Trees())
		}
		return nil
	}
}

func queryParams() (connector.QueryParams, error) {
	params := connector.QueryParams{Limit: cfg.Connector.Limit, Filter: cfg.Connector.Filter}
	var err error
	if flagStart != "" {
		if params.Start, err = time.Parse(time.RFC3339, flagStart); err != nil {
			return params, fmt.Errorf("--start: %w", err)
		}
	}
	if flagEnd != "" {
		if params.End, err = time.Parse(time.RFC3339, flagEnd); err != nil {
			return params, fmt.Errorf("--end: %w", err)
		}
	}
	return params, nil
}

func flush(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("trace flush failed", "error", err)
	}
}
