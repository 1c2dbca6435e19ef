// Package cli provides response flow commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/incidentops/console/internal/api"
	"github.com/incidentops/console/internal/progress"
)

// newFlowsCmd creates the 'flows' command group.
func newFlowsCmd() *cobra.Command {
	flowsCmd := &cobra.Command{
		Use:   "flows",
		Short: "Response flow operations (start, get, wait)",
		Long:  `Commands for starting response flows and waiting on their completion.`,
	}

	flowsCmd.AddCommand(newFlowsStartCmd())
	flowsCmd.AddCommand(newFlowsGetCmd())
	flowsCmd.AddCommand(newFlowsWaitCmd())

	return flowsCmd
}

// newFlowsStartCmd creates the 'flows start' command.
func newFlowsStartCmd() *cobra.Command {
	var (
		action string
		target string
		wait   bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a response flow",
		Long: `Start a response flow against a target host.

Example:
  irconsole flows start --action isolate --target host-17 --reason "ticket IR-204"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			apiClient, cfg, err := getAPIClient()
			if err != nil {
				return err
			}

			ctx := requestContext()
			payload := map[string]string{
				"action": action,
				"target": target,
			}

			logger.Info().Str("action", action).Str("target", target).Msg("Starting flow")
			resp, err := apiClient.Post(ctx, "flows", payload)
			if err != nil {
				return fmt.Errorf("failed to start flow: %w", err)
			}

			id, _ := resp.Data["id"].(string)
			fmt.Printf("flow %s started (state %s)\n", id, resp.State())

			if !wait {
				return nil
			}
			return waitForFlow(apiClient, cfg.PollInterval(), id)
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Flow action to run")
	cmd.Flags().StringVar(&target, "target", "", "Target host")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the flow to finish")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

// newFlowsGetCmd creates the 'flows get' command.
func newFlowsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <flow-id>",
		Short: "Show one flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, _, err := getAPIClient()
			if err != nil {
				return err
			}

			resp, err := apiClient.Get(requestContext(), "flows/"+args[0], nil)
			if err != nil {
				return fmt.Errorf("failed to get flow: %w", err)
			}

			out, err := json.MarshalIndent(resp.Data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}

	return cmd
}

// newFlowsWaitCmd creates the 'flows wait' command.
func newFlowsWaitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <flow-id>",
		Short: "Wait until a flow reaches its terminal state",
		Long: `Poll a flow until it reports FINISHED, showing the state as it
changes. Ctrl+C cancels the wait without stopping the flow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			return waitForFlow(apiClient, cfg.PollInterval(), args[0])
		},
	}

	return cmd
}

func waitForFlow(apiClient *api.Client, interval time.Duration, id string) error {
	spinner := progress.NewSpinner(fmt.Sprintf("flow %s", id))

	poll := apiClient.Poll(requestContext(), "flows/"+id, interval,
		api.WithPollProgress(func(resp *api.Response) {
			spinner.Describe(fmt.Sprintf("flow %s: %s", id, resp.State()))
			_ = spinner.Add(1)
		}),
	)

	resp, err := poll.Wait(GetContext())
	_ = spinner.Finish()
	if err != nil {
		return fmt.Errorf("flow wait failed: %w", err)
	}

	fmt.Printf("flow %s finished (state %s)\n", id, resp.State())
	return nil
}
