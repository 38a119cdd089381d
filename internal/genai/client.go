// Package genai defines the capability interface for all model-backed
// operations: answer generation (streaming and single-shot), short
// classification-style completions, and text embedding.
//
// The interface is constructed once at process start and injected into every
// consumer. When credentials are missing, the Disabled implementation
// satisfies the same interface so callers degrade instead of branching on
// nil clients.
package genai

import (
	"context"
	"errors"
)

var (
	// ErrDisabled indicates the AI client was constructed without
	// credentials and cannot serve model calls.
	ErrDisabled = errors.New("ai client disabled")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of model-visible conversation history.
type Message struct {
	Role Role
	Text string
}

// GenerateRequest carries everything a generation call needs.
type GenerateRequest struct {
	// System holds the system instructions prepended to the conversation.
	System string

	// Messages is the ordered conversation history, oldest first. The last
	// entry is the turn being answered.
	Messages []Message

	// Model optionally overrides the configured generation model.
	Model string
}

// StreamCallback receives each raw text chunk as the model emits it.
// Returning an error tears down the stream.
type StreamCallback func(ctx context.Context, chunk string) error

// Client is the capability interface for model-backed operations.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Generate produces a complete answer in one call.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream produces an answer incrementally, invoking cb for every
	// chunk in emission order, and returns the full accumulated text.
	GenerateStream(ctx context.Context, req GenerateRequest, cb StreamCallback) (string, error)

	// Complete runs a single-prompt completion against the classifier model.
	// Used for query decomposition, probe-question synthesis, snippet
	// extraction, and summarization.
	Complete(ctx context.Context, prompt string) (string, error)

	// Embed converts text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}
