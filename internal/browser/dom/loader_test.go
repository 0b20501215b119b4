package dom

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// noRedirectClient leaves redirects to the loader.
func noRedirectClient(srv *httptest.Server) *http.Client {
	c := srv.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func TestHTTPLoader_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pilot-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head><title>Page</title></head><body></body></html>`)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		http.Redirect(w, r, "/done", http.StatusSeeOther)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head><title>`+r.Method+` `+r.Header.Get("Referer")+`</title></head></html>`)
	})
	mux.HandleFunc("/temp", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>`+r.Method+` `+string(body)+`</title></head></html>`)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"a":1}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	loader := NewHTTPLoader(noRedirectClient(srv), "pilot-test", zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("PlainGet", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/page", nil)
		final, doc, err := loader.Load(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/page", final.String())
		assert.Equal(t, "Page", htmlquery.InnerText(htmlquery.FindOne(doc, "//title")))
	})

	t.Run("SeeOtherTurnsPostIntoGet", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/submit", strings.NewReader("q=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		final, doc, err := loader.Load(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/done", final.String())
		assert.Equal(t, "GET "+srv.URL+"/submit", htmlquery.InnerText(htmlquery.FindOne(doc, "//title")))
	})

	t.Run("TemporaryRedirectKeepsMethodAndBody", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/temp", strings.NewReader("q=1"))
		final, doc, err := loader.Load(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/echo", final.String())
		assert.Equal(t, "POST q=1", htmlquery.InnerText(htmlquery.FindOne(doc, "//title")))
	})

	t.Run("RedirectLimit", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/loop", nil)
		_, _, err := loader.Load(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maximum number of redirects")
	})

	t.Run("NonHTMLIsEmpty", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/data.json", nil)
		_, doc, err := loader.Load(ctx, req)
		require.NoError(t, err)
		assert.Nil(t, htmlquery.FindOne(doc, "//title"))
		assert.NotNil(t, htmlquery.FindOne(doc, "//body"))
	})
}

func TestMapLoader(t *testing.T) {
	m := MapLoader{"https://x.test/a": `<html><body><p id="a">A</p></body></html>`}

	req, _ := http.NewRequest(http.MethodGet, "https://x.test/a?ignored=1", nil)
	u, doc, err := m.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/a?ignored=1", u.String())
	assert.NotNil(t, htmlquery.FindOne(doc, "//p[@id='a']"))

	req, _ = http.NewRequest(http.MethodGet, "https://x.test/missing", nil)
	_, doc, err = m.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, htmlquery.FindOne(doc, "//p"))
}
