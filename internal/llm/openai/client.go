// Package openai implements llm.Provider against OpenAI-compatible chat
// completion APIs (OpenAI, DeepSeek and similar gateways).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Really-Cool/mcpapi/internal/version"
	"github.com/Really-Cool/mcpapi/pkg/llm"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
	DefaultTimeout = 20 * time.Second
)

// maxErrorBody bounds how much of an error response is read into a message.
const maxErrorBody = 4 << 10

// Compile-time interface guard.
var _ llm.Provider = (*Client)(nil)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds each request, including reading the body.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to a chat completions endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New creates a Client with safe defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		endpoint: strings.TrimRight(base, "/") + "/chat/completions",
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    model,
		timeout:  timeout,
		http:     httpClient,
		logger:   logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends messages and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	if c.apiKey == "" {
		return nil, llm.NewProviderError(llm.ErrCodeAuthentication, "missing api key", nil)
	}
	if len(messages) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "no messages", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, llm.NewProviderError(llm.ErrCodeRateLimited, "outbound limiter", err)
		}
	}

	o := llm.ApplyOptions(opts...)
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.JSONResponse {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidRequest, "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, mapError(&statusError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)})
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, mapError(err)
		}
		return nil, llm.NewProviderError(llm.ErrCodeInvalidResponse, "decode response", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeInvalidResponse, "response has no choices", nil)
	}

	model := decoded.Model
	if model == "" {
		model = req.Model
	}
	return &llm.Response{
		Content: decoded.Choices[0].Message.Content,
		Model:   model,
		Done:    true,
	}, nil
}

// readErrorMessage extracts error.message from an API error body, falling
// back to the raw (truncated) body text.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "empty error body"
	}
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
