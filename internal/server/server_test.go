package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestChatRouteIsPostOnly(t *testing.T) {
	var calls int
	chat := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, "hola")
	})
	srv := New("127.0.0.1", 0, WithChatHandler(chat))
	assert.Equal(t, DefaultChatPath, srv.ChatPath())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[]}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hola", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestChatPathOverride(t *testing.T) {
	chat := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := New("127.0.0.1", 0, WithChatHandler(chat), WithChatPath("/v1/chat"), WithChatPath("relative"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/v1/chat", srv.ChatPath())
}

func TestRealIPFeedsRemoteAddr(t *testing.T) {
	var seen string
	chat := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handlers.ClientIdentifier(r)
	})
	srv := New("127.0.0.1", 0, WithChatHandler(chat))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.23, 10.0.0.1")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.23", seen)
}

func TestTimeoutsDefaultAndOverride(t *testing.T) {
	srv := New("127.0.0.1", 0)
	assert.Equal(t, DefaultTimeouts(), srv.Timeouts())
	assert.Greater(t, srv.Timeouts().Write, 30*time.Second)

	srv = New("127.0.0.1", 0, WithTimeouts(Timeouts{Write: time.Minute}))
	assert.Equal(t, time.Minute, srv.Timeouts().Write)
	assert.Equal(t, 30*time.Second, srv.Timeouts().Read)
}

func TestHealthEndpointsUseInjectedManager(t *testing.T) {
	hm := handlers.NewHealthManager("9.9.9")
	hm.RegisterDegradable("quota_store", handlers.CheckerFunc(func(ctx context.Context) error {
		return errors.New("unreachable")
	}))
	srv := New("127.0.0.1", 0, WithHealthManager(hm))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, handlers.StatusDegraded, resp.Status)
	assert.Equal(t, "9.9.9", resp.Version)
}

func TestAdminEndpointRequiresToken(t *testing.T) {
	t.Setenv("CHATGATE_ADMIN_TOKEN", "")
	srv := New("127.0.0.1", 0)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv = New("127.0.0.1", 0, WithAdminToken("s3cret"))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServeAndShutdown(t *testing.T) {
	srv := New("127.0.0.1", 0, WithChatHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})))

	ts := httptest.NewUnstartedServer(nil)
	ln := ts.Listener
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/chat", "application/json", strings.NewReader("{}"))
		if err != nil {
			return false
		}
		defer resp.Body.Close() // nolint:errcheck // test cleanup
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}
