// internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

// GenAIClient invokes Gemini through the google.golang.org/genai SDK.
type GenAIClient struct {
	client *genai.Client
	model  string
	genCfg *genai.GenerateContentConfig
	logger *zap.Logger
}

var _ schemas.ModelInvoker = (*GenAIClient)(nil)

// NewGenAIClient creates the SDK client. cfg.Endpoint, when set, replaces the
// API base URL. httpClient may be nil.
func NewGenAIClient(ctx context.Context, cfg config.LLMConfig, httpClient *http.Client, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no Gemini key set (PILOT_GEMINI_API_KEY)", schemas.ErrModelUnavailable)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: llm.model is empty", schemas.ErrModelUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create genai client: %v", schemas.ErrModelUnavailable, err)
	}

	genCfg := &genai.GenerateContentConfig{}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &GenAIClient{
		client: client,
		model:  cfg.Model,
		genCfg: genCfg,
		logger: logger.Named("llm_client.genai"),
	}, nil
}

func (c *GenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.genCfg)
	if err != nil {
		return "", fmt.Errorf("genai generate content failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		reason := ""
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			reason = string(resp.Candidates[0].FinishReason)
		}
		c.logger.Warn("GenAI reply carried no text.", zap.String("finish_reason", reason))
	}
	if resp.UsageMetadata != nil {
		c.logger.Debug("GenAI generation complete.",
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	return text, nil
}
