package schemas

import (
	"context"
)

// -- Model Interface --

// ModelInvoker turns a prompt into a text completion. Implementations must
// fail, not return an empty string, when the model cannot be used.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// -- Page Interfaces --

// Page is one live document an action runs against. Every selector-based
// method resolves to the first match in document order and wraps
// ErrElementNotFound when nothing matches.
type Page interface {
	// URL returns the current location.
	URL(ctx context.Context) (string, error)
	// SetLocation starts a navigation and returns without waiting for it.
	SetLocation(ctx context.Context, url string) error
	// Click runs the default activation of the matched element.
	Click(ctx context.Context, selector string) error
	// Fill focuses the matched element, replaces its value and fires an input event.
	Fill(ctx context.Context, selector, text string) error
	// SubmitForm submits the form enclosing the matched element. It reports
	// false, with no error, when the element has no form.
	SubmitForm(ctx context.Context, selector string) (bool, error)
}

// PageSource is the host environment's view of its page contexts.
type PageSource interface {
	ActiveTarget(ctx context.Context) (Target, error)
	Page(ctx context.Context, target Target) (Page, error)
}

// -- Controller Interfaces --

// ContextResolver finds the page context a plan should run against. It
// returns ErrNoActiveContext when there is none.
type ContextResolver interface {
	ActiveTarget(ctx context.Context) (Target, error)
}

// Transport carries one perform request to the page side and returns its
// single response. An error means the round trip itself failed.
type Transport interface {
	Send(ctx context.Context, target Target, req PerformRequest) (PerformResponse, error)
}

// -- Store Interface --

// HistoryStore persists PlanAndRun outcomes.
type HistoryStore interface {
	SaveRun(ctx context.Context, record RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
