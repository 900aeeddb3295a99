package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/ailink"
	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
	"github.com/adrianaguero/chatgate/internal/core"
	apperrors "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/metrics"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/relay"
	"github.com/adrianaguero/chatgate/internal/server/middleware"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// FallbackIdentifier is used when the remote address cannot be parsed.
const FallbackIdentifier = "127.0.0.1"

// DefaultChatTimeout bounds a chat request end to end.
const DefaultChatTimeout = 30 * time.Second

const generationFailedBody = `{"error":"Error generating response"}`

// QuotaChecker decides whether a client may make another request.
type QuotaChecker interface {
	Check(ctx context.Context, identifier string) core.QuotaDecision
}

// PromptAssembler composes the system prompt for a conversation.
type PromptAssembler interface {
	Assemble(messages []core.ChatMessage) *prompt.Composed
}

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	Limiter   QuotaChecker
	Assembler PromptAssembler
	Generator ailink.Generator
	Logger    *logging.Logger

	// Provider labels generation metrics.
	Provider string
	// MaxDuration bounds the request including the streamed body.
	MaxDuration time.Duration
}

// ServeHTTP runs quota check, prompt assembly, generation and relay in that order.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := ClientIdentifier(r)

	decision := h.Limiter.Check(r.Context(), identifier)
	if !decision.Allowed {
		h.writeRateLimited(w, r, identifier, decision)
		return
	}

	var body core.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be a JSON object with a messages array"))
		return
	}
	if body.Messages == nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("messages is required"))
		return
	}

	maxDuration := h.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultChatTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
	defer cancel()

	composed := h.Assembler.Assemble(body.Messages)
	stream, err := h.Generator.Generate(ctx, composed)
	if err != nil {
		h.writeGenerationFailed(w, r, err)
		return
	}

	sink := relay.NewResponseSink(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")
	if err := sink.Commit(http.StatusOK); err != nil {
		_ = stream.Close()
		h.log().Debug("Client gone before stream start", zap.Error(err))
		return
	}

	res := relay.Pump(ctx, stream, sink)
	metrics.RecordRelay(string(res.Outcome), res.Chunks, res.Bytes, res.Duration)

	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.Int("chunks", res.Chunks),
		zap.Int64("bytes", res.Bytes),
		zap.Duration("duration", res.Duration),
		zap.String("requestID", middleware.GetRequestID(r.Context())),
	}

	switch res.Outcome {
	case relay.OutcomeCompleted:
		h.log().Debug("Chat stream completed", fields...)
	case relay.OutcomeClientGone:
		h.log().Debug("Client disconnected during stream", append(fields, zap.Error(res.Err))...)
	case relay.OutcomeCanceled:
		if r.Context().Err() != nil {
			h.log().Debug("Client disconnected during stream", fields...)
			return
		}
		h.log().Warn("Chat stream exceeded max duration, aborting", append(fields, zap.Error(res.Err))...)
		panic(http.ErrAbortHandler)
	default:
		// Status is committed; the missing terminating chunk marks truncation.
		h.log().Warn("Upstream failed mid-stream, aborting", append(fields, zap.Error(res.Err))...)
		panic(http.ErrAbortHandler)
	}
}

func (h *ChatHandler) writeRateLimited(w http.ResponseWriter, r *http.Request, identifier string, decision core.QuotaDecision) {
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt, 10))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(http.StatusText(http.StatusTooManyRequests)))

	metrics.RecordError(apperrors.CodeRateLimited, http.StatusTooManyRequests)
	h.log().Info("Quota exceeded",
		zap.String("identifier", identifier),
		zap.Int("limit", decision.Limit),
		zap.Int64("reset_at", decision.ResetAt),
		zap.String("requestID", middleware.GetRequestID(r.Context())))
}

// writeGenerationFailed hides the failure kind from the caller; it is only logged.
func (h *ChatHandler) writeGenerationFailed(w http.ResponseWriter, r *http.Request, err error) {
	kind := ailink.KindOf(err)
	if kind == "" {
		kind = ailink.KindUpstreamFailure
	}
	metrics.RecordGenerationError(string(kind), h.Provider)

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("provider", h.Provider),
		zap.Error(err),
		zap.String("requestID", middleware.GetRequestID(r.Context())),
	}
	var gerr *ailink.GenerationError
	if errors.As(err, &gerr) && gerr.Code != "" {
		fields = append(fields, zap.String("code", gerr.Code))
	}
	h.log().Error("Error generating response", fields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(generationFailedBody))
}

var (
	fallbackLoggerOnce sync.Once
	fallbackLogger     *logging.Logger
)

func (h *ChatHandler) log() *logging.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	if observability.ServerLogger != nil {
		return observability.ServerLogger
	}
	fallbackLoggerOnce.Do(func() {
		logger, err := logging.NewCLI("chatgate")
		if err != nil {
			panic(fmt.Sprintf("chat handler logger: %v", err))
		}
		fallbackLogger = logger
	})
	return fallbackLogger
}

// ClientIdentifier returns the caller's address for quota bucketing.
// RealIP middleware has already applied forwarding headers to RemoteAddr.
func ClientIdentifier(r *http.Request) string {
	addr := r.RemoteAddr
	if addr == "" {
		return FallbackIdentifier
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if net.ParseIP(addr) == nil {
		return FallbackIdentifier
	}
	return addr
}
