package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/agentrag/internal/cli"
	"github.com/cloo-solutions/agentrag/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentragd",
		Short: "agentrag daemon and admin CLI",
		Long:  "agentrag daemon for running the query server, indexing documents and managing the semantic cache",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.CacheCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
