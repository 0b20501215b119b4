// internal/agent/coordinator.go
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Coordinator sends a plan's actions to the page side one at a time and
// collects the log lines. It holds no state between runs.
type Coordinator struct {
	resolver  schemas.ContextResolver
	transport schemas.Transport
	logger    *zap.Logger
}

// NewCoordinator creates a Coordinator. The resolver picks the page a plan
// runs against; the transport carries each perform request to it.
func NewCoordinator(resolver schemas.ContextResolver, transport schemas.Transport, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		resolver:  resolver,
		transport: transport,
		logger:    logger.Named("coordinator"),
	}
}

// Execute resolves the active page context and runs the actions against it.
// The error is non-nil only when no context could be resolved.
func (c *Coordinator) Execute(ctx context.Context, actions []json.RawMessage) (schemas.ExecutionResult, error) {
	if c.resolver == nil {
		return schemas.ExecutionResult{}, schemas.ErrNoActiveContext
	}
	target, err := c.resolver.ActiveTarget(ctx)
	if err != nil {
		c.logger.Warn("Could not resolve the active page context.",
			zap.String("failure", string(FailureTargetResolution)),
			zap.Error(err))
		return schemas.ExecutionResult{}, err
	}
	return c.RunPlan(ctx, target, actions), nil
}

// RunPlan runs actions strictly in order against target. Each action is
// logged as "Run: <json>" before dispatch. The first failure appends an
// "Error: ..." line and ends the run with OK false; later actions are never
// sent. The context is checked before each dispatch.
func (c *Coordinator) RunPlan(ctx context.Context, target schemas.Target, actions []json.RawMessage) schemas.ExecutionResult {
	logs := make([]string, 0, 2*len(actions))
	logger := c.logger.With(zap.String("target_id", target.ID))

	for i, raw := range actions {
		if err := ctx.Err(); err != nil {
			logger.Warn("Plan cancelled before dispatch.",
				zap.String("failure", string(FailureCancelled)),
				zap.Int("step", i))
			logs = append(logs, "Error: "+err.Error())
			return schemas.ExecutionResult{OK: false, Logs: logs}
		}

		serialized := schemas.CanonicalJSON(raw)
		logs = append(logs, "Run: "+serialized)

		req := schemas.PerformRequest{
			ID:      uuid.NewString(),
			Action:  schemas.RequestPerform,
			Target:  &target,
			Payload: raw,
		}
		logger.Debug("Dispatching action.", zap.Int("step", i), zap.String("request_id", req.ID), zap.String("action", serialized))

		resp, err := c.send(ctx, target, req)
		if err != nil {
			logger.Warn("Transport failed, stopping plan.",
				zap.String("failure", string(FailureTransport)),
				zap.Int("step", i),
				zap.Error(err))
			logs = append(logs, "Error: "+err.Error())
			return schemas.ExecutionResult{OK: false, Logs: logs}
		}

		if resp.Error != "" || !resp.OK {
			msg := resp.Error
			if msg == "" {
				msg = defaultDispatchError
			}
			logger.Warn("Action failed, stopping plan.",
				zap.String("failure", string(FailureActionDispatch)),
				zap.Int("step", i),
				zap.String("error", msg))
			logs = append(logs, "Error: "+msg)
			return schemas.ExecutionResult{OK: false, Logs: logs}
		}

		if resp.Log != "" {
			logs = append(logs, resp.Log)
		}
	}

	return schemas.ExecutionResult{OK: true, Logs: logs}
}

// send wraps the transport call so a panicking transport is reported like any
// other round-trip failure.
func (c *Coordinator) send(ctx context.Context, target schemas.Target, req schemas.PerformRequest) (resp schemas.PerformResponse, err error) {
	if c.transport == nil {
		return schemas.PerformResponse{}, fmt.Errorf("no transport configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return c.transport.Send(ctx, target, req)
}
