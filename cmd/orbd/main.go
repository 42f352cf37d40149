// Orbd is the learning and adaptation daemon for cooperating agent roles.
//
// It ingests behavioral events over HTTP, mines them for recurring
// patterns, and serves back insights, recommendations, and suggested
// adaptations awaiting user approval.
//
// Usage:
//
//	# Start the daemon with defaults
//	orbd serve
//
//	# Use a specific config file
//	orbd serve --config ~/.config/orbd/config.yaml
//
//	# Configure via environment
//	ORBD_SERVER_PORT=9230 orbd serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orbd",
	Short:   "Learning and adaptation daemon",
	Long:    `orbd ingests behavioral events from cooperating roles, detects recurring patterns, and turns them into actionable insights and adaptation suggestions.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orbd daemon",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orbd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/orbd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
