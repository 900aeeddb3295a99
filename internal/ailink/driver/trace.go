package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Trace entry kinds. A traced generation writes one request entry when the
// stream opens (or fails to) and one stream entry when it ends.
const (
	TraceKindRequest = "request"
	TraceKindStream  = "stream"
)

// TraceEntry is one NDJSON line of the generation trace.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Kind        string          `json:"kind"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method,omitempty"`
	Model       string          `json:"model,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Chunks      int             `json:"chunks,omitempty"`
	Bytes       int64           `json:"bytes,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

type traceSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func (s *traceSink) write(entry TraceEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(data, '\n'))
}

func (s *traceSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

var activeTrace atomic.Pointer[traceSink]

// EnableTracing appends trace entries to path, replacing any previous trace
// file. The returned func disables tracing again.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- trace path is operator-provided
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	if prev := activeTrace.Swap(&traceSink{w: f}); prev != nil {
		_ = prev.close()
	}
	return DisableTracing, nil
}

// DisableTracing closes the trace file, if any.
func DisableTracing() {
	if prev := activeTrace.Swap(nil); prev != nil {
		_ = prev.close()
	}
}

// IsTracingEnabled reports whether a trace file is open.
func IsTracingEnabled() bool {
	return activeTrace.Load() != nil
}

// Trace writes entry when tracing is enabled.
func Trace(entry TraceEntry) {
	sink := activeTrace.Load()
	if sink == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	sink.write(entry)
}
