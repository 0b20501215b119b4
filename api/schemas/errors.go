// api/schemas/errors.go
package schemas

import "errors"

var (
	// ErrElementNotFound is returned by a Page when a selector matches nothing.
	ErrElementNotFound = errors.New("no element for selector")
	// ErrNoActiveContext means the host has no page to run against.
	ErrNoActiveContext = errors.New("no active context")
	ErrUnknownAction   = errors.New("unknown action")
	ErrInvalidAction   = errors.New("invalid action")
	// ErrModelUnavailable is returned by a ModelInvoker that cannot be reached
	// or was never configured. It is not retried.
	ErrModelUnavailable   = errors.New("language model unavailable")
	ErrStarButtonNotFound = errors.New("GitHub Star button not found")
)
