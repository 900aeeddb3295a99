package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeNotFound:           http.StatusNotFound,
		CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		CodeExternalService:    http.StatusBadGateway,
		"SOMETHING_NEW":        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	var requestID string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = middleware.GetRequestID(r.Context())
		RespondWithError(w, r, WrapInvalidInput(r.Context(), fmt.Errorf("unexpected EOF"), "request body must be JSON"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CodeInvalidInput, resp.Error.Code)
	assert.Equal(t, "request body must be JSON", resp.Error.Message)
	assert.Equal(t, requestID, resp.Error.RequestID)
	assert.Equal(t, "unexpected EOF", resp.Error.Details["wrapped_error"])
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	env := EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, gferrors.SeverityHigh, env.Severity)

	original := NewRateLimitedError("slow down")
	assert.Same(t, original, EnsureEnvelope(original))

	assert.Equal(t, gferrors.SeverityCritical, EnsureEnvelope(nil).Severity)
}

func TestEnsureCorrelationIDFallsBack(t *testing.T) {
	env := EnsureCorrelationID(NewNotFoundError("missing"), context.Background())
	assert.Contains(t, env.CorrelationID, "fallback-")

	kept := NewNotFoundError("missing").WithCorrelationID("abc")
	assert.Equal(t, "abc", EnsureCorrelationID(kept, context.Background()).CorrelationID)
}

func TestResponseDetailsPrefersDetails(t *testing.T) {
	env := NewInternalError("x").WithDetails(map[string]interface{}{"probe": "ready"})
	env, err := env.WithContext(map[string]interface{}{"probe": "ctx", "status": "unhealthy"})
	require.NoError(t, err)

	details := ResponseDetails(env)
	assert.Equal(t, "ready", details["probe"])
	assert.Equal(t, "unhealthy", details["status"])
	assert.Nil(t, ResponseDetails(NewInternalError("empty")))
}
