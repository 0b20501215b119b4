// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

// unavailable always fails with the configured reason.
type unavailable struct {
	reason error
}

func (u unavailable) Invoke(context.Context, string) (string, error) {
	return "", u.reason
}

// NewModel returns the model selected by cfg.Provider. Clients are created on
// first use, so a missing API key only surfaces when a command is planned.
func NewModel(cfg config.LLMConfig, httpClient *http.Client, logger *zap.Logger) (schemas.ModelInvoker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var construct Constructor
	switch cfg.Provider {
	case config.ProviderGemini, "":
		construct = func(context.Context) (schemas.ModelInvoker, error) {
			return NewGeminiClient(cfg, httpClient, logger)
		}
	case config.ProviderGenAI:
		construct = func(ctx context.Context) (schemas.ModelInvoker, error) {
			// The SDK client outlives the first request's context.
			return NewGenAIClient(context.WithoutCancel(ctx), cfg, httpClient, logger)
		}
	case config.ProviderNone:
		return unavailable{reason: fmt.Errorf("%w: llm.provider is none", schemas.ErrModelUnavailable)}, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderGenAI, config.ProviderNone)
	}

	var model schemas.ModelInvoker = NewLazy(construct, logger)
	if cfg.RequestsPerMinute > 0 {
		model = NewRateLimited(model, cfg.RequestsPerMinute)
	}
	return model, nil
}
