package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/apsdiag/internal/config"
	"github.com/crimson-sun/apsdiag/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var (
	configPath   string
	flagSource   string
	flagPath     string
	flagEndpoint string
	flagFilter   string
	flagLimit    int
	flagOutput   string
	flagVerbose  string
	flagPretty   bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "apsdiag",
	Short: "Fault diagnosis for air pressure system sensor data",
	Long: `apsdiag sanitizes a batch of APS sensor readings, flags statistical
outliers, trains a random forest fault classifier and ranks the sensors
that drive its decisions.

Settings come from defaults, then the --config YAML file, then APSDIAG_*
environment variables, then flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	Version:           version,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&flagSource, "source", "", "batch source: file, http, gcs or influx")
	pf.StringVarP(&flagPath, "path", "p", "", "file path, URL path or object name of the batch")
	pf.StringVar(&flagEndpoint, "endpoint", "", "source base URL, bucket or InfluxDB address")
	pf.StringVar(&flagFilter, "filter", "", "source selector (InfluxDB measurement)")
	pf.IntVar(&flagLimit, "limit", 0, "maximum rows to read (0 reads all)")
	pf.StringVarP(&flagOutput, "output", "o", "", "comma separated outputs: stdout, text, file, webhook, chart")
	pf.StringVar(&flagVerbose, "verbosity", "", "report detail: minimal, standard or full")
	pf.BoolVar(&flagPretty, "pretty", false, "indent JSON output")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(analyzeCmd, anomaliesCmd, trainCmd, importanceCmd, statsCmd, serveCmd, generateCmd)
}

// loadConfig builds cfg from file, env and flags and installs the logger.
// Validation is left to each command since they need different sections.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	logger = logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	return nil
}

// applyFlags overrides c with every flag the user set explicitly.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		c.Connector.Provider = flagSource
	}
	if flags.Changed("path") {
		c.Connector.Path = flagPath
	}
	if flags.Changed("endpoint") {
		c.Connector.Endpoint = flagEndpoint
	}
	if flags.Changed("filter") {
		c.Connector.Filter = flagFilter
	}
	if flags.Changed("limit") {
		c.Connector.Limit = flagLimit
	}
	if flags.Changed("output") {
		var targets []string
		for _, t := range strings.Split(flagOutput, ",") {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
		c.Output.Targets = targets
	}
	if flags.Changed("verbosity") {
		c.Output.Verbosity = flagVerbose
	}
	if flags.Changed("pretty") {
		c.Output.Pretty = flagPretty
	}
	if flags.Changed("log-level") {
		c.Log.Level = strings.ToLower(flagLogLevel)
	}
}

func validate(c config.Config, server bool) error {
	var err error
	if server {
		err = c.ValidateServer()
	} else {
		err = c.Validate()
	}
	if err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	return nil
}
