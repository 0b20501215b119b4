package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Host is the page side of the controller/page boundary. Both the in-process
// and the WebSocket transports deliver requests to it.
type Host struct {
	exec   *Executor
	pages  schemas.PageSource
	logger *zap.Logger
}

// NewHost creates a Host serving pages from the given source.
func NewHost(exec *Executor, pages schemas.PageSource, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{exec: exec, pages: pages, logger: logger.Named("host")}
}

// ActiveTarget reports the page context plans should run against.
func (h *Host) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	if h.pages == nil {
		return schemas.Target{}, schemas.ErrNoActiveContext
	}
	return h.pages.ActiveTarget(ctx)
}

// Serve answers a single request. It never returns without a response.
func (h *Host) Serve(ctx context.Context, req schemas.PerformRequest) schemas.PerformResponse {
	switch req.Action {
	case schemas.RequestActiveTarget:
		target, err := h.ActiveTarget(ctx)
		if err != nil {
			return schemas.PerformResponse{ID: req.ID, Error: err.Error()}
		}
		return schemas.PerformResponse{ID: req.ID, OK: true, Target: &target}

	case schemas.RequestPerform:
		page, err := h.resolvePage(ctx, req.Target)
		if err != nil {
			h.logger.Warn("No page for perform request.", zap.String("request_id", req.ID), zap.Error(err))
			return schemas.PerformResponse{ID: req.ID, Error: err.Error()}
		}
		return h.exec.Handle(ctx, page, req)
	}

	return schemas.PerformResponse{ID: req.ID, Error: fmt.Sprintf("unsupported request %q", req.Action)}
}

// resolvePage uses the request's target when given, the active page otherwise.
func (h *Host) resolvePage(ctx context.Context, target *schemas.Target) (schemas.Page, error) {
	if h.pages == nil {
		return nil, schemas.ErrNoActiveContext
	}
	if target == nil || target.ID == "" {
		active, err := h.pages.ActiveTarget(ctx)
		if err != nil {
			return nil, err
		}
		target = &active
	}
	return h.pages.Page(ctx, *target)
}
