// Memoryd is a persistent memory daemon for AI agents.
//
// It stores conversations across a relational metadata catalog, a file blob
// store, and a vector index, and serves intent-routed search over them.
//
// Usage:
//
//	# Start the daemon with defaults
//	memoryd serve
//
//	# Use a config file
//	memoryd serve --config /etc/memoryd/config.yaml
//
//	# Configure via environment
//	MEMORYD_SERVER_PORT=9700 memoryd serve
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
	Use:   "memoryd",
	Short: "Persistent memory daemon for AI agents",
	Long: `memoryd stores agent conversations across a metadata catalog, blob store,
and vector index, and serves semantic, structured, and hybrid search over them.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memoryd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
