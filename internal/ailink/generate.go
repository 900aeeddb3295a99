package ailink

import (
	"context"
	"net/http"

	"github.com/adrianaguero/chatgate/internal/ailink/content"
	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
)

// Generator opens a generation stream for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, composed *prompt.Composed) (driver.Stream, error)
}

// Client is the Generator backed by the configured provider.
type Client struct {
	cfg      Config
	registry *Registry
}

// NewClient builds a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	return &Client{cfg: cfg, registry: NewRegistry(cfg, httpClient)}
}

// Provider returns the normalized provider name.
func (c *Client) Provider() string {
	return c.cfg.ProviderName()
}

// HasCredential reports whether a request could be attempted at all.
func (c *Client) HasCredential() bool {
	return c != nil && c.cfg.HasCredential()
}

// Generate resolves the driver and opens the stream. Any failure is a
// *GenerationError; nothing has been written to the caller at that point.
func (c *Client) Generate(ctx context.Context, composed *prompt.Composed) (driver.Stream, error) {
	provider := c.Provider()
	if !c.HasCredential() {
		return nil, mapProviderError(provider, driver.ErrMissingAPIKey)
	}

	resolved, err := c.registry.Resolve("")
	if err != nil {
		return nil, mapProviderError(provider, err)
	}

	stream, err := resolved.Driver.Stream(ctx, c.buildRequest(resolved.Model, composed))
	if err != nil {
		return nil, mapProviderError(provider, err)
	}
	return stream, nil
}

func (c *Client) buildRequest(model string, composed *prompt.Composed) *driver.Request {
	req := &driver.Request{Model: model}
	if composed == nil {
		return req
	}

	req.System = composed.System
	req.Messages = make([]content.Message, 0, len(composed.Messages))
	for _, msg := range composed.Messages {
		req.Messages = append(req.Messages, content.TextMessage(string(msg.Role), msg.Content))
	}
	if c.cfg.Temperature > 0 {
		temp := c.cfg.Temperature
		req.Temperature = &temp
	}
	if c.cfg.MaxOutputTokens > 0 {
		maxTokens := c.cfg.MaxOutputTokens
		req.MaxTokens = &maxTokens
	}
	return req
}
