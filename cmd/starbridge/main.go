// Starbridge — sandboxed workspace tool server for autonomous agents.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "starbridge",
	Short: "Starbridge — sandboxed workspace tool server for autonomous agents.",
	Long: `Starbridge exposes file, shell, and git operations to AI agents, confined
to per-task workspace directories under a single sandbox root. Tools are
served over MCP on stdio by default, or over HTTP and WebSocket in
gateway mode.`,
	RunE:          runServe, // Default to stdio MCP mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, gatewayCmd, workspacesCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
