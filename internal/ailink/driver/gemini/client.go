// Package gemini streams generations from the Google Generative Language API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when the request names no model.
	DefaultModel = "gemini-2.0-flash"
)

// Client implements the Gemini driver via direct HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Timeout bounds stream setup. Zero means only the caller's context applies.
	Timeout time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}

	return &Client{
		BaseURL: base,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "gemini"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsStreaming:         true,
		SupportsSystemInstruction: true,
		SupportedModels:           []string{DefaultModel},
	}
}

// Stream opens a streamGenerateContent call with SSE framing.
func (c *Client) Stream(ctx context.Context, req *driver.Request) (driver.Stream, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, driver.ErrMissingAPIKey
	}

	payload, err := buildGenerateRequest(req)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(req.Model))

	stream, err := driver.OpenSSE(ctx, driver.StreamSetup{
		Driver:   c.Name(),
		Endpoint: endpoint,
		Model:    req.Model,
		Headers:  map[string]string{"x-goog-api-key": c.APIKey},
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
