package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Print the effective analyzer thresholds as YAML",
	Long: `Load the thresholds the engine would use (defaults overlaid with
--thresholds or INSIGHTS_THRESHOLDS_FILE), validate them and print the result.
The output is a complete file that can be edited and passed back in.`,
	Args: cobra.NoArgs,
	RunE: runThresholds,
}

func runThresholds(cmd *cobra.Command, args []string) error {
	cfg, logr, err := loadConfig()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	t, err := newEngine(cfg, logr).Thresholds()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(t)
}
