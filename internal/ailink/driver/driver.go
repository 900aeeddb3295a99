package driver

import (
	"context"
	"errors"

	"github.com/adrianaguero/chatgate/internal/ailink/content"
)

var (
	// ErrMissingAPIKey is returned before any I/O when no credential is configured.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Driver defines the interface for streaming AI generation providers.
type Driver interface {
	// Stream opens a generation and returns once the provider accepted it.
	// No body bytes are read until the first Next call.
	Stream(ctx context.Context, req *Request) (Stream, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Stream yields generated text in provider order.
type Stream interface {
	// Next returns the next non-empty text chunk, or io.EOF at the end.
	Next(ctx context.Context) ([]byte, error)
	// Close releases the upstream body. It is safe to call more than once.
	Close() error
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsStreaming         bool
	SupportsSystemInstruction bool
	SupportedModels           []string
}

// Request is a provider-agnostic generation request.
type Request struct {
	Model string
	// System is sent through the provider's system channel, never as a user turn.
	System      string
	Messages    []content.Message
	Temperature *float64
	MaxTokens   *int
	Metadata    map[string]string
}

// Validate checks fields every driver needs.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is required")
	}
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Messages) == 0 {
		return errors.New("messages are required")
	}
	return nil
}
