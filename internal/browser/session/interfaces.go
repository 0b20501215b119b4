// internal/browser/session/interfaces.go
package session

import (
	"context"
)

// ScriptExecutor evaluates JavaScript in a tab's main frame and decodes the
// returned value into res (which may be nil). Session implements it over CDP;
// the page operations in page.go are written against it alone.
type ScriptExecutor interface {
	ExecuteScript(ctx context.Context, script string, res interface{}) error
}
