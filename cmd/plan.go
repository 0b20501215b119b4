// File: cmd/plan.go
package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/service"
)

// newPlanCmd prints the plan for a command without touching any page.
func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <command>",
		Short: "Ask the model for a plan and print it as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			model, err := service.InitializeModel(cfg.LLM(), logger)
			if err != nil {
				return err
			}
			planner := agent.NewPlanner(model, agent.PlannerOptions{RationaleMaxLen: cfg.Agent().RationaleMaxLen}, logger)

			plan := planner.PlanFromCommand(ctx, strings.Join(args, " "))
			if plan.Actions == nil {
				plan.Actions = []json.RawMessage{}
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		},
	}
}
