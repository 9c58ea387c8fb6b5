// Package cli wires the training pipeline, registry, prediction services
// and reporting into the covers-report command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/logging"
)

var (
	cfgFile      string
	dbPath       string
	modelDir     string
	restaurantID int64
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "covers-report",
	Short: "Restaurant operations forecasting: demand, kitchen, customers, inventory",
	Long: `covers-report trains per-restaurant models from operational data
(orders, kitchen tickets, loyalty, stock) and serves forecasts,
prep-time estimates, churn/LTV scores and inventory recommendations
from a versioned on-disk model registry.`,
	SilenceUsage: true,
}

// SetVersion sets the version reported by the root command. Called from
// main so builds can inject it at link time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the restaurant database")
	rootCmd.PersistentFlags().StringVar(&modelDir, "models", "", "model registry directory")
	rootCmd.PersistentFlags().Int64VarP(&restaurantID, "restaurant", "r", 1, "restaurant id")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace..fatal)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console or json)")
}

// setup loads configuration, applies flag overrides and builds the root
// logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if modelDir != "" {
		cfg.ModelDir = modelDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	log := logging.Setup(cfg.LogLevel, logging.Format(cfg.LogFormat), os.Stderr)
	return cfg, log, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
