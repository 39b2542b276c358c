package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cloo-solutions/agentrag/internal/domain"
	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask the knowledge base a question",
		Long: `Runs a query through the server pipeline. Progress events are printed as
they arrive; use --no-stream to wait for the final answer only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			query := strings.Join(args, " ")
			if noStream {
				return runAsk(ctx, api, query, outputJSON, cmd.OutOrStdout())
			}
			return runAskStream(ctx, api, query, outputJSON, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Use POST /query and print only the final answer")

	return cmd
}

func runAsk(ctx context.Context, api *APIClient, query string, outputJSON bool, out io.Writer) error {
	resp, err := api.Post(ctx, "/query", map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var final domain.FinalResponse
	if err := json.Unmarshal(resp.Data, &final); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(final, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}
	printAnswer(out, &final)
	return nil
}

func runAskStream(ctx context.Context, api *APIClient, query string, outputJSON bool, out io.Writer) error {
	var failure *domain.PipelineEvent

	err := api.Stream(ctx, query, func(ev domain.PipelineEvent) error {
		if outputJSON {
			line, _ := json.Marshal(ev)
			fmt.Fprintln(out, string(line))
		} else {
			printEvent(out, ev)
		}
		if ev.Step == domain.StepError {
			failure = &ev
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failure != nil {
		if code := failure.ErrorCode(); code != "" {
			return fmt.Errorf("query failed (%s): %s", code, failure.Message)
		}
		return fmt.Errorf("query failed: %s", failure.Message)
	}
	return nil
}

func printEvent(out io.Writer, ev domain.PipelineEvent) {
	switch ev.Step {
	case domain.StepComplete:
		fmt.Fprintln(out)
		if ev.FinalResponse != nil {
			printAnswer(out, ev.FinalResponse)
		}
	case domain.StepError:
		// reported by the caller
	default:
		fmt.Fprintf(out, "[%s] %s\n", ev.Step, ev.Message)
	}
}

func printAnswer(out io.Writer, resp *domain.FinalResponse) {
	fmt.Fprintln(out, resp.Answer)

	if resp.Warning != "" {
		fmt.Fprintf(out, "\nWarning: %s\n", resp.Warning)
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(resp.Sources, ", "))
	}
	if resp.Cached {
		if resp.Similarity != nil {
			fmt.Fprintf(out, "(cached, similarity %.4f)\n", *resp.Similarity)
		} else {
			fmt.Fprintln(out, "(cached)")
		}
	}
}
