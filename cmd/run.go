// File: cmd/run.go
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/service"
)

// ErrPlanIncomplete is returned when a plan stopped at a failing step.
var ErrPlanIncomplete = errors.New("plan did not complete")

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <command>",
		Short: "Plan a command with the model and run it against the active page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			comps, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer comps.Shutdown()

			result := comps.Agent.PlanAndRun(ctx, strings.Join(args, " "))
			if err := printRunResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			return runResultError(result)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result object instead of the log lines")
	return cmd
}

// printRunResult shows the rationale (if any) followed by the log lines.
func printRunResult(w io.Writer, result schemas.RunResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, result)
	}
	if result.Failed() {
		return nil
	}
	if result.Plan.Rationale != "" {
		fmt.Fprintln(w, result.Plan.Rationale)
	}
	for _, line := range result.Logs {
		fmt.Fprintln(w, line)
	}
	return nil
}

func runResultError(result schemas.RunResult) error {
	if result.Failed() {
		return errors.New(result.Error)
	}
	if !result.OK {
		return ErrPlanIncomplete
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
