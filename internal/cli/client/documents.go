package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/spf13/cobra"
)

type uploadResult struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Message string `json:"message"`
}

type listDocumentsResult struct {
	Documents []domain.Document `json:"documents"`
}

// DocsCmd creates the docs command group.
func DocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage knowledge base documents",
	}

	cmd.AddCommand(docsUploadCmd(), docsListCmd(), docsDeleteCmd())
	return cmd
}

func docsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload text documents",
		Long:  "Uploads .txt and .md files. They become searchable after the next index pass (agentragd ingest or the index worker).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				resp, err := api.UploadFile(cmd.Context(), path, nil)
				if err != nil {
					return fmt.Errorf("upload %s failed: %w", path, err)
				}

				var result uploadResult
				if err := json.Unmarshal(resp.Data, &result); err != nil {
					return fmt.Errorf("failed to parse upload response: %w", err)
				}
				if outputJSON {
					output, _ := json.Marshal(result)
					fmt.Fprintln(out, string(output))
				} else {
					fmt.Fprintf(out, "Uploaded %s (%d bytes)\n", result.Name, result.Size)
				}
			}
			return nil
		},
	}
}

func docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/documents")
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}

			var result listDocumentsResult
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse document list: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				output, _ := json.MarshalIndent(result.Documents, "", "  ")
				fmt.Fprintln(out, string(output))
				return nil
			}
			if len(result.Documents) == 0 {
				fmt.Fprintln(out, "No documents found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, d := range result.Documents {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Size, d.ModifiedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete(cmd.Context(), "/documents/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
