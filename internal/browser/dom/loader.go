// internal/browser/dom/loader.go
package dom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const maxRedirects = 10

// Loader fetches the document a navigation or form submission lands on.
type Loader interface {
	// Load performs req and returns the final URL and the parsed document.
	Load(ctx context.Context, req *http.Request) (*url.URL, *html.Node, error)
}

// HTTPLoader loads pages over HTTP. Redirects are followed manually so that
// 301/302/303 turn a POST into a GET.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewHTTPLoader wraps client. The client must not follow redirects itself.
func NewHTTPLoader(client *http.Client, userAgent string, logger *zap.Logger) *HTTPLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLoader{client: client, userAgent: userAgent, logger: logger.Named("dom_loader")}
}

func (l *HTTPLoader) Load(ctx context.Context, req *http.Request) (*url.URL, *html.Node, error) {
	current := req.WithContext(ctx)
	for i := 0; i < maxRedirects; i++ {
		l.prepareHeaders(current)
		l.logger.Debug("Executing request", zap.String("method", current.Method), zap.String("url", current.URL.String()))

		resp, err := l.client.Do(current)
		if err != nil {
			return nil, nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != "" {
			next, err := redirectRequest(ctx, resp, current)
			resp.Body.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to handle redirect: %w", err)
			}
			current = next
			continue
		}
		return l.processResponse(resp)
	}
	return nil, nil, fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
}

func (l *HTTPLoader) prepareHeaders(req *http.Request) {
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
}

func redirectRequest(ctx context.Context, resp *http.Response, prev *http.Request) (*http.Request, error) {
	next, err := prev.URL.Parse(resp.Header.Get("Location"))
	if err != nil {
		return nil, err
	}

	method := prev.Method
	var body io.ReadCloser
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if method != http.MethodHead {
			method = http.MethodGet
		}
	default:
		if prev.GetBody != nil {
			if body, err = prev.GetBody(); err != nil {
				return nil, err
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, next.String(), body)
	if err != nil {
		return nil, err
	}
	if method == prev.Method {
		if ct := prev.Header.Get("Content-Type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		}
	}
	req.Header.Set("Referer", prev.URL.String())
	return req, nil
}

func (l *HTTPLoader) processResponse(resp *http.Response) (*url.URL, *html.Node, error) {
	defer resp.Body.Close()
	final := resp.Request.URL

	if resp.StatusCode >= 400 {
		l.logger.Warn("Request resulted in error status code", zap.Int("status", resp.StatusCode), zap.String("url", final.String()))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "html") {
		l.logger.Debug("Response is not HTML, using an empty document.", zap.String("content_type", contentType))
		return final, emptyDocument(), nil
	}

	doc, err := htmlquery.Parse(resp.Body)
	if err != nil {
		return final, emptyDocument(), fmt.Errorf("failed to parse HTML response from '%s': %w", final, err)
	}
	return final, doc, nil
}

// MapLoader serves fixed documents keyed by URL. The query string is ignored
// when no exact match exists. Unknown URLs load an empty document.
type MapLoader map[string]string

func (m MapLoader) Load(_ context.Context, req *http.Request) (*url.URL, *html.Node, error) {
	u := req.URL
	src, ok := m[u.String()]
	if !ok {
		stripped := *u
		stripped.RawQuery = ""
		stripped.Fragment = ""
		src, ok = m[stripped.String()]
	}
	if !ok {
		return u, emptyDocument(), nil
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return u, emptyDocument(), err
	}
	return u, doc, nil
}

func emptyDocument() *html.Node {
	doc, _ := html.Parse(strings.NewReader("<html><head></head><body></body></html>"))
	return doc
}
