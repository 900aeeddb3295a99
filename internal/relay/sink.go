package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSinkClosed is returned by Send after Close.
var ErrSinkClosed = errors.New("sink closed")

// ResponseSink writes chunks to an http.ResponseWriter and flushes each one.
//
// Headers must be set before Commit or the first Send.
type ResponseSink struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewResponseSink wraps w. Flushing goes through http.ResponseController, so
// middleware wrappers only need to implement Unwrap.
func NewResponseSink(w http.ResponseWriter) *ResponseSink {
	return &ResponseSink{w: w, rc: http.NewResponseController(w)}
}

// Commit writes the status line and headers and flushes them, so the client
// sees the response start before the first chunk exists.
func (s *ResponseSink) Commit(status int) error {
	s.w.WriteHeader(status)
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("flush headers: %w", err)
	}
	return nil
}

// Send writes and flushes one chunk.
func (s *ResponseSink) Send(chunk []byte) error {
	if s.closed {
		return ErrSinkClosed
	}
	if _, err := s.w.Write(chunk); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("flush chunk: %w", err)
	}
	return nil
}

// Close marks the sink done. The response itself ends when the handler returns.
func (s *ResponseSink) Close() error {
	s.closed = true
	return nil
}
