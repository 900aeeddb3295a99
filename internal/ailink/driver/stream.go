package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrianaguero/chatgate/internal/ailink/driver/sse"
)

// DecodeFunc turns one SSE event into text. done ends the stream after text is delivered.
type DecodeFunc func(ev sse.Event) (text []byte, done bool, err error)

// SSEStream adapts an SSE response body into a Stream.
//
// Next is meant for a single consumer. Close may be called from any goroutine
// and unblocks a pending Next by closing the body.
type SSEStream struct {
	driver   string
	endpoint string
	model    string

	body   io.ReadCloser
	cancel context.CancelFunc
	reader *sse.Reader
	decode DecodeFunc

	started time.Time
	done    bool
	chunks  atomic.Int64
	bytes   atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	traceOnce sync.Once
}

// StreamSetup describes one streaming POST.
type StreamSetup struct {
	Driver   string
	Endpoint string
	Model    string
	Headers  map[string]string
	Payload  any
	Client   *http.Client
	// Timeout bounds the wait for response headers only.
	Timeout time.Duration
	Decode  DecodeFunc
}

// OpenSSE posts the payload and returns a stream once a 2xx response arrived.
// Non-2xx responses become *ProviderError with the body attached.
func OpenSSE(ctx context.Context, setup StreamSetup) (*SSEStream, error) {
	body, err := json.Marshal(setup.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if setup.Timeout > 0 {
		timer = time.AfterFunc(setup.Timeout, cancel)
	}

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, setup.Endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for key, value := range setup.Headers {
		httpReq.Header.Set(key, value)
	}

	client := setup.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	entry := TraceEntry{
		Kind:        TraceKindRequest,
		Driver:      setup.Driver,
		Endpoint:    setup.Endpoint,
		Method:      http.MethodPost,
		Model:       setup.Model,
		RequestBody: body,
	}

	resp, err := client.Do(httpReq)
	if timer != nil && !timer.Stop() && err == nil {
		// The setup deadline fired; the body is already canceled.
		err = context.DeadlineExceeded
		_ = resp.Body.Close()
	}
	if err != nil {
		cancel()
		entry.Error = err.Error()
		entry.DurationMs = time.Since(start).Milliseconds()
		Trace(entry)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	entry.StatusCode = resp.StatusCode
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		cancel()
		entry.Response = jsonOrNil(respBody)
		entry.DurationMs = time.Since(start).Milliseconds()
		Trace(entry)
		return nil, &ProviderError{
			Provider:    setup.Driver,
			StatusCode:  resp.StatusCode,
			Message:     strings.TrimSpace(string(respBody)),
			RawResponse: respBody,
		}
	}
	entry.DurationMs = time.Since(start).Milliseconds()
	Trace(entry)

	return &SSEStream{
		driver:   setup.Driver,
		endpoint: setup.Endpoint,
		model:    setup.Model,
		body:     resp.Body,
		cancel:   cancel,
		reader:   sse.NewReader(resp.Body),
		decode:   setup.Decode,
		started:  start,
	}, nil
}

// Next returns the next non-empty chunk of generated text.
func (s *SSEStream) Next(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := s.reader.Next()
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				s.finish(nil)
				return nil, io.EOF
			}
			if s.closed.Load() {
				return nil, ErrStreamClosed
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			s.finish(err)
			return nil, err
		}

		text, done, err := s.decode(ev)
		if err != nil {
			s.done = true
			s.finish(err)
			return nil, err
		}
		if done {
			s.done = true
		}
		if len(text) > 0 {
			s.chunks.Add(1)
			s.bytes.Add(int64(len(text)))
			if done {
				s.finish(nil)
			}
			return text, nil
		}
		if done {
			s.finish(nil)
			return nil, io.EOF
		}
	}
}

// Close releases the upstream body. It is idempotent.
func (s *SSEStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
		s.cancel()
		// No-op when the stream already finished.
		s.finish(ErrStreamClosed)
	})
	return err
}

// Stats reports the chunks and bytes delivered so far.
func (s *SSEStream) Stats() (chunks int, bytes int64) {
	return int(s.chunks.Load()), s.bytes.Load()
}

func (s *SSEStream) finish(err error) {
	s.traceOnce.Do(func() {
		entry := TraceEntry{
			Kind:       TraceKindStream,
			Driver:     s.driver,
			Endpoint:   s.endpoint,
			Model:      s.model,
			Chunks:     int(s.chunks.Load()),
			Bytes:      s.bytes.Load(),
			DurationMs: time.Since(s.started).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		Trace(entry)
	})
}

func jsonOrNil(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}
	return nil
}
