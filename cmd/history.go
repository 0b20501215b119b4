// File: cmd/history.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/service"
	"github.com/xkilldash9x/pilot/internal/store"
)

// ErrHistoryDisabled is returned when the store is not enabled in config.
var ErrHistoryDisabled = errors.New("run history is disabled (set store.enabled and PILOT_DATABASE_URL)")

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if !cfg.Store().Enabled {
				return ErrHistoryDisabled
			}

			st, pool, err := service.InitializeStore(ctx, cfg.Store(), observability.GetLogger())
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := st.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, rec := range runs {
				fmt.Fprintf(out, "%s  %-7s  %s  %s\n", rec.CreatedAt.Local().Format(time.RFC3339), runStatus(rec.Result), rec.ID, rec.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultRecentLimit, "number of runs to show")
	return cmd
}

func runStatus(r schemas.RunResult) string {
	switch {
	case r.Failed():
		return "error"
	case r.OK:
		return "ok"
	default:
		return "failed"
	}
}
