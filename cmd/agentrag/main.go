package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/agentrag/internal/cli"
	"github.com/cloo-solutions/agentrag/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentrag",
		Short: "agentrag CLI - ask questions of your document knowledge base",
		Long: `agentrag CLI talks to an agentragd server.

Environment variables:
  AGENTRAG_API_URL   Server base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "Server base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.DocsCmd())
	rootCmd.AddCommand(client.HealthCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
