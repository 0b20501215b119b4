// internal/browser/session/session.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultActionTimeout bounds a single CDP round trip when no timeout is configured.
const DefaultActionTimeout = 20 * time.Second

// Session is one attached Chrome tab. It implements schemas.Page through the
// embedded *Page, whose scripts run via ExecuteScript.
type Session struct {
	*Page

	id            string
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	actionTimeout time.Duration

	closeOnce sync.Once
}

// newSession wraps a chromedp context already bound to a target. cancel
// releases that context; it may be a no-op for the browser's first tab,
// whose lifetime belongs to the Manager.
func newSession(ctx context.Context, cancel context.CancelFunc, id string, actionTimeout time.Duration, logger *zap.Logger) *Session {
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	if cancel == nil {
		cancel = func() {}
	}
	s := &Session{
		id:            id,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.With(zap.String("target_id", id)),
		actionTimeout: actionTimeout,
	}
	s.Page = NewPage(s)
	return s
}

// ID returns the CDP target ID of the tab.
func (s *Session) ID() string {
	return s.id
}

// RunActions runs chromedp actions against the tab. The operation stops when
// either ctx or the session is canceled, or after the action timeout.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("session %s is closed: %w", s.id, err)
	}
	combined, cancelCombined := CombineContext(s.ctx, ctx)
	defer cancelCombined()

	runCtx, cancel := context.WithTimeout(combined, s.actionTimeout)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// ExecuteScript evaluates script in the tab, awaiting promises. res may be nil
// when the result is not needed.
func (s *Session) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	var raw json.RawMessage
	err := s.RunActions(ctx,
		chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true)
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timeout during ExecuteScript: %w", err)
		}
		return fmt.Errorf("failed ExecuteScript evaluation: %w", err)
	}
	if res == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

// Close detaches from the tab. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.")
		s.cancel()
	})
}
