// Package llm defines a provider-neutral interface for chat completion models.
package llm

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a completed model reply.
type Response struct {
	Content string
	Model   string
	Done    bool
}

// Provider sends chat completions to a language model.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)
}

// CallOptions holds per-call tuning. Zero values mean "provider default".
type CallOptions struct {
	Model        string
	Temperature  *float64
	MaxTokens    int
	JSONResponse bool
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithModel overrides the provider's configured model.
func WithModel(model string) CallOption {
	return func(o *CallOptions) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// WithMaxTokens bounds the length of the reply.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// WithJSONResponse constrains the reply to a single JSON object.
func WithJSONResponse() CallOption {
	return func(o *CallOptions) { o.JSONResponse = true }
}

// ApplyOptions folds opts into a CallOptions value.
func ApplyOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
