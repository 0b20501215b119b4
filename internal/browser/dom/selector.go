// internal/browser/dom/selector.go
package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned when a selector cannot be compiled.
var ErrInvalidSelector = errors.New("invalid selector")

// Selector finds elements under a root node.
type Selector interface {
	// First returns the first match in document order, or nil.
	First(root *html.Node) *html.Node
	// All returns every match in document order.
	All(root *html.Node) []*html.Node
}

// Compile turns a selector string into a Selector. Strings starting with '/',
// "./" or '(' are XPath expressions, as is anything behind an "xpath="
// prefix; everything else is CSS.
func Compile(selector string) (Selector, error) {
	s := strings.TrimSpace(selector)
	if s == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	if expr, ok := strings.CutPrefix(s, "xpath="); ok {
		return compileXPath(strings.TrimSpace(expr))
	}
	if isXPath(s) {
		return compileXPath(s)
	}
	sel, err := cascadia.Compile(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
	}
	return cssSelector(sel), nil
}

func isXPath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "(")
}

// cssSelector adapts a compiled cascadia group. Matches come back in
// document order regardless of the order of the group's members.
type cssSelector cascadia.Selector

func (c cssSelector) First(root *html.Node) *html.Node {
	return cascadia.Selector(c).MatchFirst(root)
}

func (c cssSelector) All(root *html.Node) []*html.Node {
	return cascadia.Selector(c).MatchAll(root)
}
