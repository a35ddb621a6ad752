package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "graphsim",
	Short: "Deterministic fault-propagation simulator for pub/sub graphs",
	Long: "graphsim simulates a publish/subscribe graph of cooperating nodes tick by tick,\n" +
		"injects faults at controlled locations and times, and records per-tick node\n" +
		"feature tensors and edge indices for downstream root-cause-analysis datasets.",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
