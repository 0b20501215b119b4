// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/transport"
)

// ComponentFactory creates the set of components a controller command runs
// with. Commands depend on it so tests can substitute the wiring.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires model, history, page side and agent. On failure everything
// already started is shut down again.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (comps *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Shutdown()
		}
	}()

	c.Model, err = InitializeModel(cfg.LLM(), logger)
	if err != nil {
		return nil, err
	}

	var history schemas.HistoryStore
	if cfg.Store().Enabled {
		c.Store, c.DBPool, err = InitializeStore(ctx, cfg.Store(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		history = c.Store
	}

	var (
		resolver schemas.ContextResolver
		carrier  schemas.Transport
	)
	switch cfg.Transport().Mode {
	case config.TransportWebSocket:
		logger.Info("Connecting to page agent.", zap.String("url", cfg.Transport().URL))
		c.Remote, err = transport.Dial(ctx, cfg.Transport().URL, cfg.Transport().RequestTimeout, logger)
		if err != nil {
			return nil, err
		}
		resolver, carrier = c.Remote, c.Remote

	case config.TransportDirect, "":
		c.Host, c.closePages, err = NewPageHost(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		direct := transport.NewDirect(c.Host)
		resolver, carrier = direct, direct

	default:
		return nil, fmt.Errorf("unsupported transport mode: %s", cfg.Transport().Mode)
	}

	planner := agent.NewPlanner(c.Model, agent.PlannerOptions{RationaleMaxLen: cfg.Agent().RationaleMaxLen}, logger)
	coordinator := agent.NewCoordinator(resolver, carrier, logger)
	c.Agent = agent.New(planner, coordinator, history, logger)
	return c, nil
}
