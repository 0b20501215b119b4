// File: cmd/exec.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/service"
)

// newExecCmd runs a plan produced earlier (for example by `pilot plan`).
func newExecCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		planFile string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a saved plan against the active page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			raw, err := readPlanSource(cmd.InOrStdin(), planFile)
			if err != nil {
				return err
			}
			plan, err := agent.ParsePlan(string(raw))
			if err != nil {
				return fmt.Errorf("failed to read plan from %s: %w", planFile, err)
			}

			comps, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer comps.Shutdown()

			var result schemas.RunResult
			exec, err := comps.Agent.Coordinator().Execute(ctx, plan.Actions)
			if err != nil {
				result = schemas.RunResult{Error: err.Error()}
			} else {
				result = schemas.RunResult{Plan: plan, OK: exec.OK, Logs: exec.Logs}
			}

			if err := printRunResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			return runResultError(result)
		},
	}
	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan JSON file, or - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result object instead of the log lines")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func readPlanSource(stdin io.Reader, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("no plan file given")
	}
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read plan from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return b, nil
}
