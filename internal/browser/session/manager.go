// internal/browser/session/manager.go
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Manager owns the connection to Chrome and hands out Sessions for its tabs.
// It is the schemas.PageSource for the live browser engine.
type Manager struct {
	logger *zap.Logger
	opts   Options

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[target.ID]*Session
	last     target.ID
	closed   bool
}

var _ schemas.PageSource = (*Manager)(nil)

// NewManager launches (or attaches to) Chrome and opens the first tab.
func NewManager(ctx context.Context, opts Options, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser_manager")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		log.Info("Attaching to remote browser.", zap.String("url", opts.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		log.Info("Launching browser.", zap.Bool("headless", opts.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, AllocatorOptions(opts)...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Errorf),
	)

	// The first Run starts the browser and attaches to the initial tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m := &Manager{
		logger:        log,
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sessions:      make(map[target.ID]*Session),
	}

	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		id := c.Target.TargetID
		// The browser context is canceled by Close, not by the session.
		m.sessions[id] = newSession(browserCtx, nil, string(id), opts.ActionTimeout, log)
		m.last = id
	}

	if opts.StartURL != "" {
		if err := chromedp.Run(browserCtx, chromedp.Navigate(opts.StartURL)); err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to load start URL %s: %w", opts.StartURL, err)
		}
	}
	return m, nil
}

// ActiveTarget reports the tab actions should run in: the most recently used
// page if it is still open, otherwise the first open page.
func (m *Manager) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	infos, err := m.pages(ctx)
	if err != nil {
		return schemas.Target{}, err
	}
	if len(infos) == 0 {
		return schemas.Target{}, schemas.ErrNoActiveContext
	}

	last := m.prune(infos)

	chosen := infos[0]
	for _, info := range infos {
		if info.TargetID == last {
			chosen = info
			break
		}
	}
	return toTarget(chosen), nil
}

// Page returns the Session for t, attaching to the tab on first use.
func (m *Manager) Page(ctx context.Context, t schemas.Target) (schemas.Page, error) {
	return m.session(ctx, target.ID(t.ID))
}

// prune closes sessions whose tabs are no longer listed and returns the
// last-used target ID.
func (m *Manager) prune(live []*target.Info) target.ID {
	open := make(map[target.ID]bool, len(live))
	for _, info := range live {
		open[info.TargetID] = true
	}

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if !open[id] {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	last := m.last
	m.mu.Unlock()

	for _, s := range stale {
		m.logger.Debug("Dropping session for closed tab.", zap.String("target_id", s.ID()))
		s.Close()
	}
	return last
}

func (m *Manager) session(ctx context.Context, id target.ID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: browser manager is closed", schemas.ErrNoActiveContext)
	}
	if s, ok := m.sessions[id]; ok {
		m.last = id
		return s, nil
	}

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(id))
	// Attach now so a stale target ID fails here rather than mid-plan.
	attachCtx, stop := CombineContext(tabCtx, ctx)
	err := chromedp.Run(attachCtx)
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to attach to target %s: %v", schemas.ErrNoActiveContext, id, err)
	}

	s := newSession(tabCtx, cancel, string(id), m.opts.ActionTimeout, m.logger)
	m.sessions[id] = s
	m.last = id
	m.logger.Debug("Attached to tab.", zap.String("target_id", string(id)))
	return s, nil
}

// pages lists open page targets, skipping DevTools and extension pages.
func (m *Manager) pages(ctx context.Context) ([]*target.Info, error) {
	opCtx, cancel := CombineContext(m.browserCtx, ctx)
	defer cancel()

	infos, err := chromedp.Targets(opCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if isUserPage(info) {
			out = append(out, info)
		}
	}
	return out, nil
}

func isUserPage(info *target.Info) bool {
	if info == nil || info.Type != "page" {
		return false
	}
	return !strings.HasPrefix(info.URL, "devtools://") &&
		!strings.HasPrefix(info.URL, "chrome-extension://")
}

func toTarget(info *target.Info) schemas.Target {
	return schemas.Target{ID: string(info.TargetID), URL: info.URL, Title: info.Title}
}

// Close detaches every session and shuts the browser down (or disconnects
// from a remote one).
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.browserCancel()
	m.allocCancel()
	m.logger.Info("Browser manager closed.")
}
