package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	apperrors "github.com/adrianaguero/chatgate/internal/errors"
)

type errorResponder func(http.ResponseWriter, *http.Request, error)

var (
	responderMu        sync.RWMutex
	httpErrorResponder errorResponder = apperrors.RespondWithError
)

// SetHTTPErrorResponder lets the server route handler errors through its
// central error handler. nil restores the default envelope writer.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	responderMu.Lock()
	defer responderMu.Unlock()
	if responder == nil {
		httpErrorResponder = apperrors.RespondWithError
		return
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	responderMu.RLock()
	responder := httpErrorResponder
	responderMu.RUnlock()
	responder(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
