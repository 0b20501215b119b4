// internal/llmclient/ratelimit.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// RateLimited spaces calls to the wrapped model to at most perMinute.
type RateLimited struct {
	next    schemas.ModelInvoker
	limiter *rate.Limiter
}

var _ schemas.ModelInvoker = (*RateLimited)(nil)

// NewRateLimited wraps next. perMinute must be positive.
func NewRateLimited(next schemas.ModelInvoker, perMinute int) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *RateLimited) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Invoke(ctx, prompt)
}
