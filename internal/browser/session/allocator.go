// internal/browser/session/allocator.go
package session

import (
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures how the Manager reaches Chrome.
type Options struct {
	// RemoteURL attaches to an already running browser's DevTools endpoint
	// (ws://host:9222/...). When empty a local Chrome is launched.
	RemoteURL string
	ExecPath  string
	Headless  bool
	// Args are extra Chrome flags, "name" or "name=value", with or without "--".
	Args []string
	// StartURL, if set, is loaded into the first tab after launch.
	StartURL      string
	ActionTimeout time.Duration
}

// AllocatorOptions translates Options into chromedp exec allocator options.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	// DefaultExecAllocatorOptions is headless; a visible window is opt-in.
	if !opts.Headless {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}

	for _, arg := range opts.Args {
		if key, value, ok := parseFlag(arg); ok {
			out = append(out, chromedp.Flag(key, value))
		}
	}
	return out
}

// parseFlag splits a command line style flag. Bare flags become boolean true;
// chromedp adds the "--" prefix itself.
func parseFlag(arg string) (string, interface{}, bool) {
	key, value, hasValue := strings.Cut(strings.TrimSpace(arg), "=")
	key = strings.TrimLeft(key, "-")
	if key == "" {
		return "", nil, false
	}
	if !hasValue {
		return key, true, true
	}
	return key, value, true
}
