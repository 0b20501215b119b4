// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext derives a context from sessionCtx that is also canceled when
// opCtx is done. Values (the chromedp target and executor) come from
// sessionCtx; opCtx only contributes its cancellation.
func CombineContext(sessionCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(sessionCtx)
	stop := context.AfterFunc(opCtx, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
