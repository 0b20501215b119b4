// File: internal/service/components.go
package service

import (
	"io"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/browser"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/store"
	"github.com/xkilldash9x/pilot/internal/transport"
)

// Components holds everything a controller command needs, wired from config.
// It centralizes their lifecycle so commands only call Shutdown.
type Components struct {
	Agent *agent.Agent
	Model schemas.ModelInvoker

	// Host is the in-process page side. It is nil when the controller talks
	// to a remote page agent through Remote.
	Host   *browser.Host
	Remote *transport.Client

	Store  *store.Store
	DBPool *pgxpool.Pool

	// closePages releases the page source behind Host (the browser, for the
	// chrome engine).
	closePages func()

	shutdownOnce sync.Once
}

// Shutdown releases components in reverse order of creation. It is safe to
// call on a partially built value and more than once.
func (c *Components) Shutdown() {
	c.shutdownOnce.Do(func() {
		logger := observability.GetLogger()
		logger.Debug("Beginning components shutdown sequence.")

		// 1. Stop talking to the page side.
		if c.Remote != nil {
			if err := c.Remote.Close(); err != nil {
				logger.Warn("Error closing page agent connection.", zap.Error(err))
			}
			logger.Debug("Page agent connection closed.")
		}

		// 2. Release the pages (and the browser behind them).
		if c.closePages != nil {
			c.closePages()
			logger.Debug("Page source closed.")
		}

		// 3. Release the model client if one was created.
		if closer, ok := c.Model.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("Error closing model client.", zap.Error(err))
			}
		}

		// 4. Close the database connection pool.
		if c.DBPool != nil {
			c.DBPool.Close()
			logger.Debug("Database connection pool closed.")
		}

		logger.Info("All components shut down successfully.")
	})
}
