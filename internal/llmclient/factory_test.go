// internal/llmclient/factory_test.go
package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

func TestNewModel(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("GeminiIsLazy", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.APIKey = ""
		m, err := NewModel(cfg, nil, logger)
		require.NoError(t, err, "a missing key must not fail construction")
		assert.IsType(t, &Lazy{}, m)

		_, err = m.Invoke(context.Background(), "x")
		assert.ErrorIs(t, err, schemas.ErrModelUnavailable)
	})

	t.Run("GenAIIsLazy", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.Provider = config.ProviderGenAI
		m, err := NewModel(cfg, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &Lazy{}, m)
	})

	t.Run("RateLimitWraps", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.RequestsPerMinute = 30
		m, err := NewModel(cfg, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &RateLimited{}, m)
	})

	t.Run("NoneAlwaysFails", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.Provider = config.ProviderNone
		m, err := NewModel(cfg, nil, logger)
		require.NoError(t, err)
		_, err = m.Invoke(context.Background(), "x")
		assert.ErrorIs(t, err, schemas.ErrModelUnavailable)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		cfg := testLLMConfig("")
		cfg.Provider = "openai"
		_, err := NewModel(cfg, nil, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
	})
}
