// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/browser"
	"github.com/xkilldash9x/pilot/internal/browser/dom"
	"github.com/xkilldash9x/pilot/internal/browser/session"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/llmclient"
	"github.com/xkilldash9x/pilot/internal/network"
	"github.com/xkilldash9x/pilot/internal/store"
)

// blankURL is what a static page shows before anything is loaded.
const blankURL = "about:blank"

// InitializeModel creates the configured model invoker. The underlying client
// is built on first use, so a missing API key is reported when a command is
// planned, not here.
func InitializeModel(cfg config.LLMConfig, logger *zap.Logger) (schemas.ModelInvoker, error) {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.Logger = logger
	if cfg.APITimeout > 0 {
		clientCfg.RequestTimeout = cfg.APITimeout
	}
	httpClient := network.NewClient(clientCfg)

	model, err := llmclient.NewModel(cfg, httpClient.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return model, nil
}

// InitializeStore connects to PostgreSQL and makes sure the history table exists.
func InitializeStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store.Store, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Run history store ready.")
	return st, pool, nil
}

// InitializePageSource starts the configured page engine. The returned
// function releases it.
func InitializePageSource(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (schemas.PageSource, func(), error) {
	switch cfg.Engine {
	case config.EngineStatic:
		pages, err := newStaticPages(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return pages, func() {}, nil

	case config.EngineChrome, "":
		mgr, err := session.NewManager(ctx, session.Options{
			RemoteURL:     cfg.RemoteURL,
			ExecPath:      cfg.ExecPath,
			Headless:      cfg.Headless,
			Args:          cfg.Args,
			StartURL:      cfg.StartURL,
			ActionTimeout: cfg.ActionTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		return mgr, mgr.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported browser engine: %s", cfg.Engine)
}

// newStaticPages opens one in-memory page that loads documents over HTTP.
func newStaticPages(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*dom.Pages, error) {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.Logger = logger
	clientCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
	clientCfg.FollowRedirects = false
	if cfg.NavigationTimeout > 0 {
		clientCfg.RequestTimeout = cfg.NavigationTimeout
	}
	loader := dom.NewHTTPLoader(network.NewClient(clientCfg).Client, cfg.UserAgent, logger)

	doc, err := dom.NewDocument(blankURL, "", dom.WithLoader(loader), dom.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if cfg.StartURL != "" {
		if err := doc.SetLocation(ctx, cfg.StartURL); err != nil {
			return nil, fmt.Errorf("failed to load start URL %s: %w", cfg.StartURL, err)
		}
	}

	pages := dom.NewPages()
	pages.Open(doc)
	return pages, nil
}

// NewPageHost builds the page side: a page source plus the action executor.
func NewPageHost(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*browser.Host, func(), error) {
	pages, closePages, err := InitializePageSource(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, nil, err
	}
	exec := browser.NewExecutor(browser.ExecutorOptions{
		DefaultWait: cfg.Agent().DefaultWait(),
		StarSettle:  cfg.Agent().StarSettle(),
	}, logger)
	return browser.NewHost(exec, pages, logger), closePages, nil
}
