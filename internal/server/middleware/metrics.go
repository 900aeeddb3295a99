package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/observability"
)

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush keeps streamed responses incremental through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getEndpointPattern extracts chi route pattern to avoid high-cardinality paths
func getEndpointPattern(r *http.Request) string {
	// Try to get chi route pattern
	routePattern := chi.RouteContext(r.Context()).RoutePattern()
	if routePattern != "" {
		return routePattern
	}

	// Fallback to path-based categorization for non-chi routes
	path := r.URL.Path
	switch path {
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return "/health/*"
	case "/version":
		return "/version"
	case "/metrics":
		return "/metrics"
	case "/api/chat":
		return "/api/chat"
	case "/admin/signal":
		return "/admin/signal"
	case "/":
		return "/"
	default:
		// For unknown paths, use a generic pattern to avoid cardinality issues
		return "/unknown"
	}
}

// StatusAborted labels requests whose connection was cut by http.ErrAbortHandler.
const StatusAborted = "aborted"

// RequestMetrics middleware captures HTTP request metrics following Prometheus standards.
// Aborted streams are recorded before the abort continues up the stack.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		requestSize := int64(0)
		if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
			if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
				requestSize = size
			}
		}

		defer func() {
			rec := recover()
			status := strconv.Itoa(wrapped.statusCode)
			if rec == http.ErrAbortHandler {
				status = StatusAborted
			}
			recordRequest(r, wrapped, status, requestSize, time.Since(start))
			if rec != nil {
				panic(rec)
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}

func recordRequest(r *http.Request, wrapped *responseWriter, status string, requestSize int64, duration time.Duration) {
	endpoint := getEndpointPattern(r)

	// Common labels for all metrics (avoid high cardinality)
	commonLabels := map[string]string{
		"method":   r.Method,
		"endpoint": endpoint,
		"status":   status,
	}

	_ = observability.TelemetrySystem.Counter("http_requests_total", 1, commonLabels)
	_ = observability.TelemetrySystem.Histogram("http_request_duration_ms", duration, commonLabels)

	sizeLabels := map[string]string{
		"method":   r.Method,
		"endpoint": endpoint,
	}
	_ = observability.TelemetrySystem.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
	_ = observability.TelemetrySystem.Gauge("http_response_size_bytes", float64(wrapped.bytesWritten), sizeLabels)

	if wrapped.statusCode >= 400 {
		errorType := "client_error"
		if wrapped.statusCode >= 500 {
			errorType = "server_error"
		}
		_ = observability.TelemetrySystem.Counter("http_errors_total", 1, map[string]string{
			"method":     r.Method,
			"endpoint":   endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}

	// Request ID stays in logs, not metrics.
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.String("status", status),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", wrapped.bytesWritten),
			zap.String("requestID", GetRequestID(r.Context())),
		)
	}
}
