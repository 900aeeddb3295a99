// Package openai streams chat completions from OpenAI-compatible endpoints.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the OpenAI driver via direct HTTP.
//
// BaseURL may point at any server speaking the chat completions shape.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}

	return &Client{
		BaseURL: url,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "openai"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsStreaming:         true,
		SupportsSystemInstruction: true,
	}
}

// Stream sends a chat completion request with stream enabled.
func (c *Client) Stream(ctx context.Context, req *driver.Request) (driver.Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, driver.ErrMissingAPIKey
	}

	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	stream, err := driver.OpenSSE(ctx, driver.StreamSetup{
		Driver:   c.Name(),
		Endpoint: strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		Model:    req.Model,
		Headers:  map[string]string{"Authorization": "Bearer " + c.APIKey},
		Payload:  payload,
		Client:   c.HTTPClient,
		Timeout:  c.Timeout,
		Decode:   decodeEvent,
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}
