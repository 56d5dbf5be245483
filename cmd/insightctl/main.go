// Package main implements insightctl, a command-line companion to the
// insights API for offline computation, exports and operator tasks.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-insights/pkg/config"
	"github.com/noah-isme/gradebook-insights/pkg/logger"
)

var (
	thresholdsPath string
	verbose        bool
	version        = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "insightctl",
	Short: "Gradebook insights from the command line",
	Long: `insightctl runs the gradebook analytics engine locally against JSON, CSV or
XLSX gradebooks, renders report exports and performs operator tasks such as
database migrations and issuing development tokens.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&thresholdsPath, "thresholds", "", "YAML thresholds file (defaults to INSIGHTS_THRESHOLDS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	rootCmd.AddCommand(computeCmd, exportCmd, tokenCmd, migrateCmd, thresholdsCmd)
}

// loadConfig reads the same environment as the API server and applies the
// CLI overrides.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if thresholdsPath != "" {
		cfg.Insights.ThresholdsFile = thresholdsPath
	}
	cfg.Log.Level = "warn"
	if verbose {
		cfg.Log.Level = "debug"
	}
	cfg.Log.Format = "console"
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
