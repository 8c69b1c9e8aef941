// Package cli implements the Cobra-based command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - on-call alerting engine",
	Long: `Vigil ingests alerts from monitoring systems, deduplicates and groups
them, pages the on-call responder through escalation policies, tracks
acknowledgements and resolutions, and learns which alerts are noise.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vigil.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
