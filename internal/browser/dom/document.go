// internal/browser/dom/document.go
package dom

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Event types recorded by a Document.
const (
	EventNavigate = "navigate"
	EventClick    = "click"
	EventFocus    = "focus"
	EventInput    = "input"
	EventSubmit   = "submit"
)

// Event is one observable side effect on a Document.
type Event struct {
	Type string
	// Path addresses the element involved; empty for navigations.
	Path  string
	Value string
	URL   string
}

// Document is an in-memory page backed by an x/net/html tree. Without a
// Loader, navigations only change the location and reset the tree.
type Document struct {
	mu     sync.Mutex
	url    *url.URL
	root   *html.Node
	events []Event
	loader Loader
	logger *zap.Logger
}

var _ schemas.Page = (*Document)(nil)

// Option configures a Document.
type Option func(*Document)

// WithLoader makes navigations and form submissions fetch real documents.
func WithLoader(l Loader) Option { return func(d *Document) { d.loader = l } }

// WithLogger sets the document logger.
func WithLogger(l *zap.Logger) Option { return func(d *Document) { d.logger = l.Named("dom") } }

// NewDocument parses src as the document currently shown at rawURL.
func NewDocument(rawURL, src string, opts ...Option) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid document URL %q: %w", rawURL, err)
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	d := &Document{url: u, root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustDocument is NewDocument for fixtures.
func MustDocument(rawURL, src string, opts ...Option) *Document {
	d, err := NewDocument(rawURL, src, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Events returns a copy of the recorded events.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := htmlquery.FindOne(d.root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

// HTML renders the current tree.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

// Value returns the current value of the first element matching selector.
func (d *Document) Value(selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.find(selector)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(n.Data, "input") {
		return htmlquery.SelectAttr(n, "value"), nil
	}
	return htmlquery.InnerText(n), nil
}

func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url.String(), nil
}

func (d *Document) SetLocation(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, err := d.resolve(rawURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for '%s': %w", target, err)
	}
	d.events = append(d.events, Event{Type: EventNavigate, URL: target.String()})
	d.load(ctx, req)
	return nil
}

func (d *Document) Click(ctx context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.find(selector)
	if err != nil {
		return err
	}
	d.events = append(d.events, Event{Type: EventClick, Path: PathOf(n)})
	return d.activate(ctx, n)
}

func (d *Document) Fill(ctx context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.find(selector)
	if err != nil {
		return err
	}
	if !isTextInput(n) {
		return fmt.Errorf("element for selector %s is not an input (<%s>)", selector, n.Data)
	}

	path := PathOf(n)
	d.events = append(d.events, Event{Type: EventFocus, Path: path})
	if strings.EqualFold(n.Data, "input") {
		setAttr(n, "value", text)
	} else {
		setText(n, text)
	}
	d.events = append(d.events, Event{Type: EventInput, Path: path, Value: text})
	return nil
}

func (d *Document) SubmitForm(ctx context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.find(selector)
	if err != nil {
		return false, err
	}
	form := enclosingForm(n)
	if form == nil {
		return false, nil
	}
	return true, d.submit(ctx, form)
}

// find must be called with d.mu held.
func (d *Document) find(selector string) (*html.Node, error) {
	sel, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	n := sel.First(d.root)
	if n == nil {
		return nil, fmt.Errorf("%w %s", schemas.ErrElementNotFound, selector)
	}
	return n, nil
}

// activate runs the default action of a clicked element: anchors navigate,
// submit controls submit their form, checkboxes and radios toggle.
func (d *Document) activate(ctx context.Context, n *html.Node) error {
	tag := strings.ToLower(n.Data)

	if tag == "a" {
		href := strings.TrimSpace(htmlquery.SelectAttr(n, "href"))
		if href != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") && !strings.HasPrefix(href, "#") {
			target, err := d.resolve(href)
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
			if err != nil {
				return err
			}
			d.events = append(d.events, Event{Type: EventNavigate, URL: target.String()})
			d.load(ctx, req)
		}
		return nil
	}

	if isSubmitControl(n) {
		if form := enclosingForm(n); form != nil {
			return d.submit(ctx, form)
		}
		return nil
	}

	if tag == "input" {
		switch inputType(n) {
		case "checkbox":
			if _, checked := getAttr(n, "checked"); checked {
				removeAttr(n, "checked")
			} else {
				setAttr(n, "checked", "checked")
			}
		case "radio":
			d.selectRadio(n)
		}
	}
	return nil
}

func (d *Document) selectRadio(n *html.Node) {
	name := htmlquery.SelectAttr(n, "name")
	scope := enclosingForm(n)
	if scope == nil {
		scope = d.root
	}
	if name != "" {
		for _, radio := range htmlquery.Find(scope, ".//input[@type='radio']") {
			if htmlquery.SelectAttr(radio, "name") == name {
				removeAttr(radio, "checked")
			}
		}
	}
	setAttr(n, "checked", "checked")
}

func (d *Document) submit(ctx context.Context, form *html.Node) error {
	req, err := submissionRequest(ctx, form, d.url)
	if err != nil {
		return err
	}
	d.events = append(d.events, Event{Type: EventSubmit, Path: PathOf(form), URL: req.URL.String()})
	d.load(ctx, req)
	return nil
}

// load replaces the document with whatever req lands on. A failed load is
// not reported to the caller: like a browser, the page just ends up blank.
func (d *Document) load(ctx context.Context, req *http.Request) {
	if d.loader == nil {
		d.url = req.URL
		d.root = emptyDocument()
		return
	}
	final, root, err := d.loader.Load(ctx, req)
	if err != nil {
		d.logger.Debug("Page load failed.", zap.String("url", req.URL.String()), zap.Error(err))
	}
	if final == nil {
		final = req.URL
	}
	if root == nil {
		root = emptyDocument()
	}
	d.url, d.root = final, root
}

func (d *Document) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve URL '%s': %w", rawURL, err)
	}
	if d.url != nil {
		return d.url.ResolveReference(ref), nil
	}
	return ref, nil
}
