// internal/llmclient/gemini_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

// DefaultGeminiEndpoint is formatted with the model name.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// maxErrorBody caps how much of an error response is quoted back.
const maxErrorBody = 4096

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMConfig
}

var _ schemas.ModelInvoker = (*GeminiClient)(nil)

// -- Gemini API Request/Response Structures --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client. httpClient may be nil.
func NewGeminiClient(cfg config.LLMConfig, httpClient *http.Client, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no Gemini key set (PILOT_GEMINI_API_KEY)", schemas.ErrModelUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Model == "" {
			return nil, fmt.Errorf("%w: llm.model is empty", schemas.ErrModelUnavailable)
		}
		endpoint = fmt.Sprintf(DefaultGeminiEndpoint, cfg.Model)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.APITimeout}
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger.Named("llm_client.gemini"),
		config:     cfg,
	}, nil
}

// Invoke sends the prompt as a single user turn and returns the first
// candidate's text. Transient failures (429, 500, 503, network errors) are
// retried up to llm.max_retries times.
func (c *GeminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.config.MaxRetries, 0))), ctx)

	var text string
	operation := func() error {
		var err error
		text, err = c.call(ctx, body)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Gemini request failed, retrying.", zap.Error(err), zap.Duration("backoff", wait))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.apiError(resp.StatusCode, respBody)
	}

	var payload geminiResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		reason := ""
		if len(payload.Candidates) > 0 {
			reason = payload.Candidates[0].FinishReason
		}
		c.logger.Warn("Gemini reply carried no text.", zap.String("finish_reason", reason))
		return "", nil
	}

	c.logger.Debug("Gemini generation complete.",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", payload.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", payload.UsageMetadata.CandidatesTokenCount),
	)
	return payload.Candidates[0].Content.Parts[0].Text, nil
}

func (c *GeminiClient) buildRequest(prompt string) geminiRequest {
	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
	}
	if c.config.Temperature > 0 || c.config.MaxTokens > 0 {
		gc := &geminiGenerationConfig{MaxOutputTokens: c.config.MaxTokens}
		if c.config.Temperature > 0 {
			t := c.config.Temperature
			gc.Temperature = &t
		}
		req.GenerationConfig = gc
	}
	return req
}

// APIError is a non-2xx answer from the Gemini endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Gemini error %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether retrying may help.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func (c *GeminiClient) apiError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	c.logger.Warn("Gemini API returned error status.", zap.Int("status", status))
	if apiErr.Transient() {
		return apiErr
	}
	return backoff.Permanent(apiErr)
}

// IsAPIError extracts an *APIError from err.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
