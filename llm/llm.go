// Package llm defines the provider-neutral contracts for completion
// and embedding calls. Providers live under providers/.
package llm

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

// Request carries one completion call. System messages are prepended
// ahead of Messages in the given order; providers without a native
// system role downgrade them to user turns.
type Request struct {
	Model    string
	Messages []Message
	System   []string
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}

// Embedder turns text into a fixed-length vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}
