// internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

const okReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"actions\":[]}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4}}`

func testLLMConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    config.ProviderGemini,
		Model:       "gemini-2.5-flash",
		APIKey:      "test-key",
		Endpoint:    endpoint,
		APITimeout:  5 * time.Second,
		Temperature: 0.2,
		MaxTokens:   256,
	}
}

func TestNewGeminiClient(t *testing.T) {
	t.Run("MissingKey", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.APIKey = ""
		_, err := NewGeminiClient(cfg, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrModelUnavailable)
		assert.Contains(t, err.Error(), "PILOT_GEMINI_API_KEY")
	})

	t.Run("DefaultEndpointUsesModel", func(t *testing.T) {
		c, err := NewGeminiClient(testLLMConfig(""), nil, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent", c.endpoint)
		assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	})

	t.Run("EmptyModelWithoutEndpoint", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.Model = ""
		_, err := NewGeminiClient(cfg, nil, nil)
		assert.ErrorIs(t, err, schemas.ErrModelUnavailable)
	})
}

func TestGeminiClient_Invoke(t *testing.T) {
	t.Run("SendsPromptAndReturnsText", func(t *testing.T) {
		var got geminiRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &got))
			_, _ = io.WriteString(w, okReply)
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testLLMConfig(srv.URL), srv.Client(), zaptest.NewLogger(t))
		require.NoError(t, err)

		text, err := c.Invoke(context.Background(), "click login")
		require.NoError(t, err)
		assert.Equal(t, `{"actions":[]}`, text)

		require.Len(t, got.Contents, 1)
		assert.Equal(t, "user", got.Contents[0].Role)
		assert.Equal(t, "click login", got.Contents[0].Parts[0].Text)
		require.NotNil(t, got.GenerationConfig)
		assert.Equal(t, 256, got.GenerationConfig.MaxOutputTokens)
		require.NotNil(t, got.GenerationConfig.Temperature)
		assert.InDelta(t, 0.2, *got.GenerationConfig.Temperature, 1e-6)
	})

	t.Run("ErrorStatusIsReported", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "bad prompt")
		}))
		defer srv.Close()

		cfg := testLLMConfig(srv.URL)
		cfg.MaxRetries = 3
		c, err := NewGeminiClient(cfg, srv.Client(), zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), "x")
		require.Error(t, err)
		assert.Equal(t, "Gemini error 400: bad prompt", err.Error())
		apiErr, ok := IsAPIError(err)
		require.True(t, ok)
		assert.False(t, apiErr.Transient())
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "client errors are not retried")
	})

	t.Run("RetriesTransientStatus", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, okReply)
		}))
		defer srv.Close()

		cfg := testLLMConfig(srv.URL)
		cfg.MaxRetries = 2
		c, err := NewGeminiClient(cfg, srv.Client(), zaptest.NewLogger(t))
		require.NoError(t, err)

		text, err := c.Invoke(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, `{"actions":[]}`, text)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})

	t.Run("NoRetriesByDefault", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "slow down")
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testLLMConfig(srv.URL), srv.Client(), zaptest.NewLogger(t))
		require.NoError(t, err)

		_, err = c.Invoke(context.Background(), "x")
		require.Error(t, err)
		assert.Equal(t, "Gemini error 429: slow down", err.Error())
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("NoTextIsEmptyString", func(t *testing.T) {
		for name, reply := range map[string]string{
			"NoCandidates": `{"candidates":[]}`,
			"NoParts":      `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`,
		} {
			t.Run(name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = io.WriteString(w, reply)
				}))
				defer srv.Close()

				core, logs := observer.New(zap.WarnLevel)
				c, err := NewGeminiClient(testLLMConfig(srv.URL), srv.Client(), zap.New(core))
				require.NoError(t, err)

				text, err := c.Invoke(context.Background(), "x")
				require.NoError(t, err)
				assert.Empty(t, text)
				assert.Equal(t, 1, logs.FilterMessage("Gemini reply carried no text.").Len())
			})
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, okReply)
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testLLMConfig(srv.URL), srv.Client(), zaptest.NewLogger(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = c.Invoke(ctx, "x")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
