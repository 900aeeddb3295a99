// Package probe exercises a running chat endpoint the way a browser client
// does: it posts one conversation, reads the streamed body chunk by chunk and
// reports what arrived.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adrianaguero/chatgate/internal/core"
)

const (
	// DefaultURL is the chat endpoint of a locally running server.
	DefaultURL = "http://localhost:8080/api/chat"

	// DefaultMessage is the greeting sent when no message is given.
	DefaultMessage = "Hola, ¿quién eres?"

	// MinContentLength is the character count below which a body counts as cut off.
	MinContentLength = 10

	// PreviewLength is the number of characters kept in Report.Preview.
	PreviewLength = 50

	maxErrorBody = 4 << 10
	readBuffer   = 32 << 10
)

// RateLimit holds the X-RateLimit-* response headers.
type RateLimit struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// Report describes one probe run.
type Report struct {
	ProbeID     string        `json:"probe_id"`
	URL         string        `json:"url"`
	Status      int           `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	FirstByte   time.Duration `json:"first_byte_ns,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Chunks        [][]byte `json:"-"`
	ChunkCount    int      `json:"chunks"`
	Bytes         int      `json:"bytes"`
	ContentLength int      `json:"content_length"`
	Content       string   `json:"content,omitempty"`
	Preview       string   `json:"preview"`

	// Truncated is set when the body is shorter than MinContentLength.
	Truncated bool `json:"truncated"`
	// ReadError is set when the body ended with an error instead of EOF.
	ReadError string `json:"read_error,omitempty"`
	// ErrorBody holds the start of a non-2xx body.
	ErrorBody string `json:"error_body,omitempty"`

	RateLimit *RateLimit `json:"rate_limit,omitempty"`
}

// Passed reports a 200 whose body ended cleanly and is long enough.
func (r *Report) Passed() bool {
	return r != nil && r.Status == http.StatusOK && r.ReadError == "" && !r.Truncated
}

// Prober posts conversations to a chat endpoint.
type Prober struct {
	Client      *http.Client
	URL         string
	ToolVersion string
	Clock       func() time.Time
}

// Probe sends messages and drains the streamed response.
// Transport failures before a response are returned as errors; everything
// after the status line is recorded in the report.
func (p *Prober) Probe(ctx context.Context, messages []core.ChatMessage) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	payload, err := json.Marshal(core.ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	target := p.url()
	probeID := uuid.New().String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", probeID)
	if p.ToolVersion != "" {
		req.Header.Set("User-Agent", "chatgate-probe/"+p.ToolVersion)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{}
	}

	started := p.now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	report := &Report{
		ProbeID:     probeID,
		URL:         target,
		Status:      resp.StatusCode,
		RequestedAt: started,
		RateLimit:   rateLimitHeaders(resp.Header),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		report.ErrorBody = strings.TrimSpace(string(body))
		report.Duration = p.now().Sub(started)
		return report, nil
	}

	var content bytes.Buffer
	buf := make([]byte, readBuffer)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if report.ChunkCount == 0 {
				report.FirstByte = p.now().Sub(started)
			}
			chunk := append([]byte(nil), buf[:n]...)
			report.Chunks = append(report.Chunks, chunk)
			report.ChunkCount++
			content.Write(chunk)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			report.ReadError = readErr.Error()
			break
		}
	}
	report.Duration = p.now().Sub(started)

	report.Bytes = content.Len()
	report.Content = content.String()
	report.ContentLength = utf8.RuneCountInString(report.Content)
	report.Preview = preview(report.Content, PreviewLength)
	report.Truncated = report.ContentLength < MinContentLength
	return report, nil
}

// HexDump renders chunk as space-separated lowercase hex bytes.
func HexDump(chunk []byte) string {
	return fmt.Sprintf("% x", chunk)
}

func (p *Prober) url() string {
	if p != nil && strings.TrimSpace(p.URL) != "" {
		return strings.TrimSpace(p.URL)
	}
	return DefaultURL
}

func (p *Prober) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func preview(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	return string(runes[:limit]) + "..."
}

func rateLimitHeaders(h http.Header) *RateLimit {
	limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if err != nil {
		return nil
	}
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	return &RateLimit{Limit: limit, Remaining: remaining, Reset: reset}
}
