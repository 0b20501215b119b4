package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// historyTimeout bounds the best-effort write of a run record.
const historyTimeout = 5 * time.Second

// Agent is the top-level command entry point: plan, resolve, run, record.
type Agent struct {
	planner     *Planner
	coordinator *Coordinator
	history     schemas.HistoryStore
	logger      *zap.Logger
}

// New creates an Agent. history may be nil to disable run recording.
func New(planner *Planner, coordinator *Coordinator, history schemas.HistoryStore, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		planner:     planner,
		coordinator: coordinator,
		history:     history,
		logger:      logger.Named("agent"),
	}
}

// Planner exposes the agent's planner for plan-only callers.
func (a *Agent) Planner() *Planner { return a.planner }

// Coordinator exposes the agent's coordinator for callers that already hold a plan.
func (a *Agent) Coordinator() *Coordinator { return a.coordinator }

// PlanAndRun plans the command and executes the plan against the active page.
// It never returns an error: a missing page context, or a panic in any
// collaborator, is reported through RunResult.Error.
func (a *Agent) PlanAndRun(ctx context.Context, command string) (result schemas.RunResult) {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))
	logger.Info("Planning command.", zap.String("command", command))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic during plan and run.",
				zap.String("failure", string(FailurePanic)),
				zap.Any("panic_value", r),
				zap.Stack("stack"))
			result = schemas.RunResult{Error: fmt.Sprintf("internal error: %v", r)}
		}
		a.record(ctx, runID, command, result)
	}()

	plan := a.planner.PlanFromCommand(ctx, command)

	exec, err := a.coordinator.Execute(ctx, plan.Actions)
	if err != nil {
		return schemas.RunResult{Error: err.Error()}
	}

	logger.Info("Plan finished.", zap.Bool("ok", exec.OK), zap.Int("log_lines", len(exec.Logs)))
	return schemas.RunResult{Plan: plan, OK: exec.OK, Logs: exec.Logs}
}

// record persists the outcome. Failures are logged and never change the result.
func (a *Agent) record(ctx context.Context, runID, command string, result schemas.RunResult) {
	if a.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	rec := schemas.RunRecord{
		ID:        runID,
		Command:   command,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.history.SaveRun(saveCtx, rec); err != nil {
		a.logger.Warn("Failed to record run history.", zap.String("run_id", runID), zap.Error(err))
	}
}
