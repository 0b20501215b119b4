// internal/llmclient/lazy.go
package llmclient

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Constructor builds the underlying model on first use.
type Constructor func(ctx context.Context) (schemas.ModelInvoker, error)

// Lazy defers model construction to the first Invoke. A construction failure
// is remembered and returned by every later call.
type Lazy struct {
	construct Constructor
	logger    *zap.Logger

	mu    sync.Mutex
	done  bool
	model schemas.ModelInvoker
	err   error
}

var _ schemas.ModelInvoker = (*Lazy)(nil)

func NewLazy(construct Constructor, logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy{construct: construct, logger: logger.Named("llm_client.lazy")}
}

func (l *Lazy) Invoke(ctx context.Context, prompt string) (string, error) {
	model, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return model.Invoke(ctx, prompt)
}

func (l *Lazy) get(ctx context.Context) (schemas.ModelInvoker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.done = true
		l.model, l.err = l.construct(ctx)
		if l.err != nil {
			l.logger.Warn("Model is unavailable.", zap.Error(l.err))
		} else {
			l.logger.Debug("Model client created.")
		}
	}
	return l.model, l.err
}

// Close releases the underlying model if it was created and is closable.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
