// Package llm provides the text-understanding client used by the Research
// Graph Service for intent extraction, CV concept extraction, and outreach
// email drafting.
//
// The package defines a provider-agnostic Client interface with OpenAI and
// Anthropic implementations. Callers build prompts, request a completion, and
// parse the model output themselves; response-shape failures are theirs to
// degrade on.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single message in a chat completion request.
type Message struct {
	Role    Role
	Content string
}

// Request contains the parameters for one completion call.
type Request struct {
	// Messages is the conversation to complete, in order.
	Messages []Message

	// MaxTokens bounds the response length. Zero means the provider default.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// ResponseFormat set to "json" asks the provider for a JSON object
	// response where supported.
	ResponseFormat string
}

// Usage contains token accounting reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the completion returned by a provider.
type Response struct {
	// Content is the raw text of the completion.
	Content string
	// Model is the model that produced the completion.
	Model string
	// Usage is the token usage for the call.
	Usage Usage
}

// Client defines the interface for LLM completion providers.
//
// Implementations should handle provider-specific API calls, transient-error
// retries, and error wrapping while conforming to this unified interface.
type Client interface {
	// Complete sends the request and returns the model's completion.
	// The context should be used for cancellation and deadline propagation.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
