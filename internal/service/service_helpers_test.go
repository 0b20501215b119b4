package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/observability"
)

func TestMain(m *testing.M) {
	// Initialize logger
	cfg := config.NewDefaultConfig()
	observability.InitializeLogger(cfg.Logger())

	exitCode := m.Run()

	observability.Sync()
	os.Exit(exitCode)
}

// staticConfig returns a config that needs neither Chrome nor a model key.
func staticConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SetBrowserEngine(config.EngineStatic)
	cfg.SetLLMProvider(config.ProviderNone)
	cfg.SetTransportMode(config.TransportDirect)
	cfg.SetStoreEnabled(false)
	return cfg
}

// newSiteServer serves a small two-page site.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Home</title></head><body><a id="next" href="/next">Next</a></body></html>`)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Next</title></head><body><p>done</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
