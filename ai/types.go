// Package ai provides a provider-agnostic completion layer over a set of
// hosted LLM APIs. Each adapter walks its own model priority list; the
// Router walks the adapter chain.
package ai

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ChatMessage is a single turn in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in prompts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoCompletion is returned when a provider exhausted its model list
// without producing any content.
var ErrNoCompletion = errors.New("ai: no completion produced")

// ErrMissingCredentials is returned when a provider has no API key configured.
var ErrMissingCredentials = errors.New("ai: missing credentials")

// Provider is a single LLM vendor adapter. Implementations never panic and
// never surface vendor-specific errors; any failure collapses into
// ErrNoCompletion after the model list is exhausted.
type Provider interface {
	Name() string

	// Complete returns the full completion text.
	Complete(ctx context.Context, msgs []ChatMessage) (string, error)

	// StreamComplete returns a channel of text fragments. The channel is
	// closed when the stream ends; a channel closed before the first
	// fragment means the provider failed.
	StreamComplete(ctx context.Context, msgs []ChatMessage) (<-chan string, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
