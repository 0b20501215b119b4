// internal/browser/executor.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

const (
	DefaultWait       = 1000 * time.Millisecond
	DefaultStarSettle = 2000 * time.Millisecond
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ExecutorOptions tunes the page-side executor.
type ExecutorOptions struct {
	// DefaultWait applies to wait actions without ms.
	DefaultWait time.Duration
	// StarSettle is the pause after the star action navigates to the repository.
	StarSettle time.Duration
	// Sleep is replaced in tests.
	Sleep SleepFunc
}

// Executor runs single actions against a page. It never retries.
type Executor struct {
	opts   ExecutorOptions
	logger *zap.Logger
}

// NewExecutor creates an Executor, filling unset options with defaults.
func NewExecutor(opts ExecutorOptions, logger *zap.Logger) *Executor {
	if opts.DefaultWait <= 0 {
		opts.DefaultWait = DefaultWait
	}
	if opts.StarSettle <= 0 {
		opts.StarSettle = DefaultStarSettle
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{opts: opts, logger: logger.Named("executor")}
}

// Perform decodes raw and runs it against page, returning the log line.
func (e *Executor) Perform(ctx context.Context, page schemas.Page, raw json.RawMessage) (string, error) {
	action, err := schemas.DecodeAction(raw)
	if err != nil {
		return "", err
	}
	if page == nil {
		return "", schemas.ErrNoActiveContext
	}

	switch a := action.(type) {
	case schemas.Navigate:
		if err := page.SetLocation(ctx, a.URL); err != nil {
			return "", fmt.Errorf("navigation to %s failed: %w", a.URL, err)
		}
		return "Navigating to " + a.URL, nil

	case schemas.Wait:
		d := e.opts.DefaultWait
		if a.MS != nil {
			d = time.Duration(*a.MS) * time.Millisecond
		}
		if err := e.opts.Sleep(ctx, d); err != nil {
			return "", err
		}
		return fmt.Sprintf("Waited %dms", d.Milliseconds()), nil

	case schemas.Click:
		if err := page.Click(ctx, a.Selector); err != nil {
			return "", err
		}
		return "Clicked " + a.Selector, nil

	case schemas.Type:
		if err := page.Fill(ctx, a.Selector, a.Text); err != nil {
			return "", err
		}
		if a.Submit {
			submitted, err := page.SubmitForm(ctx, a.Selector)
			if err != nil {
				return "", fmt.Errorf("submit after typing into %s failed: %w", a.Selector, err)
			}
			if !submitted {
				e.logger.Debug("No enclosing form, submit skipped.", zap.String("selector", a.Selector))
			}
		}
		return "Typed into " + a.Selector, nil

	case schemas.StarGithubRepo:
		return e.starRepository(ctx, page, a)
	}

	return "", fmt.Errorf("%w: %s", schemas.ErrUnknownAction, schemas.CanonicalJSON(raw))
}

// Handle answers one perform request with exactly one response.
func (e *Executor) Handle(ctx context.Context, page schemas.Page, req schemas.PerformRequest) (resp schemas.PerformResponse) {
	resp.ID = req.ID
	if req.Action != schemas.RequestPerform {
		resp.Error = fmt.Sprintf("unsupported request %q", req.Action)
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from panic while performing action.", zap.Any("panic_value", r), zap.Stack("stack"))
			resp = schemas.PerformResponse{ID: req.ID, Error: fmt.Sprintf("action panicked: %v", r)}
		}
	}()

	logLine, err := e.Perform(ctx, page, req.Payload)
	if err != nil {
		e.logger.Debug("Action failed.", zap.String("request_id", req.ID), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Log = logLine
	return resp
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
