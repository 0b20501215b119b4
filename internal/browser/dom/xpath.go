// internal/browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// xpathSelector evaluates a compiled XPath expression with htmlquery.
// Non-element results (text or attribute nodes) are skipped.
type xpathSelector struct {
	expr *xpath.Expr
}

func compileXPath(s string) (Selector, error) {
	expr, err := xpath.Compile(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, s, err)
	}
	return xpathSelector{expr: expr}, nil
}

func (x xpathSelector) First(root *html.Node) *html.Node {
	for _, n := range htmlquery.QuerySelectorAll(root, x.expr) {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

func (x xpathSelector) All(root *html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range htmlquery.QuerySelectorAll(root, x.expr) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

// PathOf returns an XPath that addresses node, anchored on the nearest
// ancestor carrying an id. Recorded events use it to name the element they
// touched.
func PathOf(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)

		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		// XPath positions are 1-based and count same-tag siblings only.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	joined := strings.Join(path, "/")
	if !strings.HasPrefix(joined, "//*[@id=") {
		joined = "/" + joined
	}
	return joined
}
