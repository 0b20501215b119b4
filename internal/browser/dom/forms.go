// internal/browser/dom/forms.go
package dom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// formControls selects every control a form serializes.
const formControls = ".//input | .//textarea | .//select"

// serializeForm collects the successful controls of form the way a browser
// builds a urlencoded submission.
func serializeForm(form *html.Node) (url.Values, error) {
	values := url.Values{}
	controls, err := htmlquery.QueryAll(form, formControls)
	if err != nil {
		return nil, fmt.Errorf("failed to query form elements: %w", err)
	}

	for _, control := range controls {
		name := htmlquery.SelectAttr(control, "name")
		if name == "" {
			continue
		}
		if _, disabled := getAttr(control, "disabled"); disabled {
			continue
		}

		switch strings.ToLower(control.Data) {
		case "input":
			switch inputType(control) {
			case "checkbox", "radio":
				if _, checked := getAttr(control, "checked"); checked {
					value := htmlquery.SelectAttr(control, "value")
					if value == "" {
						value = "on"
					}
					values.Add(name, value)
				}
			case "submit", "button", "image", "reset", "file":
			default:
				values.Add(name, htmlquery.SelectAttr(control, "value"))
			}
		case "textarea":
			values.Add(name, htmlquery.InnerText(control))
		case "select":
			selected, _ := htmlquery.QueryAll(control, ".//option[@selected]")
			for _, opt := range selected {
				value, ok := getAttr(opt, "value")
				if !ok {
					value = strings.TrimSpace(htmlquery.InnerText(opt))
				}
				values.Add(name, value)
			}
		}
	}
	return values, nil
}

// submissionRequest builds the GET or POST request a form submission sends.
func submissionRequest(ctx context.Context, form *html.Node, base *url.URL) (*http.Request, error) {
	values, err := serializeForm(form)
	if err != nil {
		return nil, err
	}

	target := base
	if action := strings.TrimSpace(htmlquery.SelectAttr(form, "action")); action != "" {
		ref, err := url.Parse(action)
		if err != nil {
			return nil, fmt.Errorf("invalid form action %q: %w", action, err)
		}
		if base != nil {
			target = base.ResolveReference(ref)
		} else {
			target = ref
		}
	}
	if target == nil {
		return nil, fmt.Errorf("cannot determine form submission URL")
	}

	if strings.EqualFold(htmlquery.SelectAttr(form, "method"), http.MethodPost) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	withQuery := *target
	withQuery.RawQuery = values.Encode()
	withQuery.Fragment = ""
	return http.NewRequestWithContext(ctx, http.MethodGet, withQuery.String(), nil)
}

// enclosingForm returns n itself when it is a form, else its nearest form
// ancestor, else nil.
func enclosingForm(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "form") {
			return cur
		}
	}
	return nil
}

func inputType(n *html.Node) string {
	t := strings.ToLower(strings.TrimSpace(htmlquery.SelectAttr(n, "type")))
	if t == "" && strings.EqualFold(n.Data, "input") {
		return "text"
	}
	return t
}

// isTextInput reports whether n accepts typed text.
func isTextInput(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return true
	case "input":
		switch inputType(n) {
		case "checkbox", "radio", "submit", "button", "image", "reset", "file", "hidden":
			return false
		}
		return true
	}
	v, ok := getAttr(n, "contenteditable")
	return ok && !strings.EqualFold(v, "false")
}

// isSubmitControl reports whether activating n submits its form.
func isSubmitControl(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "button":
		t := inputType(n)
		return t == "" || t == "submit"
	case "input":
		t := inputType(n)
		return t == "submit" || t == "image"
	}
	return false
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// setText replaces the children of n with a single text node.
func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
