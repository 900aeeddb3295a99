package integration

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/core/engine"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/server"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = observability.StopMetrics()
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// initMetricsOrSkip attempts to start the metrics exporter; if the environment
// forbids network binds we skip instead of failing the entire suite.
func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

// scriptedStream replays chunks, optionally failing after them.
type scriptedStream struct {
	chunks [][]byte
	err    error

	mu  sync.Mutex
	pos int
}

func (s *scriptedStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// scriptedGenerator hands out a fresh stream per request.
type scriptedGenerator struct {
	chunks []string
	err    error
	failAt error

	mu    sync.Mutex
	calls int
	last  *prompt.Composed
}

func (g *scriptedGenerator) Generate(ctx context.Context, composed *prompt.Composed) (driver.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = composed
	if g.err != nil {
		return nil, g.err
	}
	chunks := make([][]byte, 0, len(g.chunks))
	for _, c := range g.chunks {
		chunks = append(chunks, []byte(c))
	}
	return &scriptedStream{chunks: chunks, err: g.failAt}, nil
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stack struct {
	store     *quota.Memory
	generator *scriptedGenerator
	health    *handlers.HealthManager
	srv       *server.Server
}

func newStack(t *testing.T, window core.QuotaWindow, gen *scriptedGenerator) *stack {
	t.Helper()

	logger, err := logging.NewCLI("integration")
	require.NoError(t, err)

	assembler, err := prompt.DefaultAssembler()
	require.NoError(t, err)

	store := quota.NewMemory(window, nil)
	chat := &handlers.ChatHandler{
		Limiter:     &engine.RateLimiter{Store: store, Logger: logger, Driver: "memory"},
		Assembler:   assembler,
		Generator:   gen,
		Logger:      logger,
		Provider:    "gemini",
		MaxDuration: 5 * time.Second,
	}

	hm := handlers.NewHealthManager("test")
	hm.RegisterDegradable("quota_store", handlers.CheckerFunc(store.Ping))

	srv := server.New("127.0.0.1", 0,
		server.WithChatHandler(chat),
		server.WithHealthManager(hm),
	)
	return &stack{store: store, generator: gen, health: hm, srv: srv}
}

// start binds to IPv4 loopback explicitly (avoiding IPv6-only defaults)
// and skips when the sandbox refuses to open sockets.
func (s *stack) start(t *testing.T, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	if setup != nil {
		if mux, ok := s.srv.Handler().(*chi.Mux); ok {
			setup(mux)
		}
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: s.srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}
