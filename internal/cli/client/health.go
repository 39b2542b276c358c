package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			var health struct {
				Status      string `json:"status"`
				Provider    string `json:"provider"`
				Environment string `json:"environment"`
			}
			if err := json.Unmarshal(resp.Raw, &health); err != nil {
				return fmt.Errorf("failed to parse health response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (provider %s, environment %s)\n", health.Status, health.Provider, health.Environment)
			if health.Status != "ok" {
				return fmt.Errorf("server reported status %q", health.Status)
			}
			return nil
		},
	}
}
