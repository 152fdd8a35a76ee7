package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/fireflyviz/internal/logger"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "firefly",
	Short: "Firefly algorithm optimizer with a live animation server",
	Long: `firefly runs the Firefly Algorithm on benchmark objectives, either as a
batch run from the command line or as animated sessions served over HTTP
and Server-Sent Events.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so command output on stdout stays pipeable
		logger.Setup(logLevel, logFormat, os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
}
