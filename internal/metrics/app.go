package metrics

import (
	"time"

	"github.com/adrianaguero/chatgate/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Quota metrics
	QuotaDecisionsTotal   = "quota_decisions_total"
	QuotaStoreErrorsTotal = "quota_store_errors_total"

	// Generation metrics
	GenerationErrorsTotal = "generation_errors_total"

	// Relay metrics
	RelayStreamsTotal = "relay_streams_total"
	RelayBytesTotal   = "relay_bytes_total"
	RelayChunksTotal  = "relay_chunks_total"
	RelayDuration     = "relay_duration_ms"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordQuotaDecision records one rate limiter decision.
// tier is unconfigured, store_error or normal.
func RecordQuotaDecision(tier string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaDecisionsTotal,
			1,
			map[string]string{
				"tier":    tier,
				"outcome": outcome,
			},
		)
	}
}

// RecordQuotaStoreError records a quota store failure that was failed open.
func RecordQuotaStoreError(driver string) {
	if driver == "" {
		driver = "unknown"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaStoreErrorsTotal,
			1,
			map[string]string{"driver": driver},
		)
	}
}

// RecordGenerationError records a generation failure by kind.
func RecordGenerationError(kind string, provider string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			GenerationErrorsTotal,
			1,
			map[string]string{
				"kind":     kind,
				"provider": provider,
			},
		)
	}
}

// RecordRelay records a finished stream.
func RecordRelay(outcome string, chunks int, bytes int64, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{"outcome": outcome}
	_ = observability.TelemetrySystem.Counter(RelayStreamsTotal, 1, labels)
	_ = observability.TelemetrySystem.Counter(RelayBytesTotal, float64(bytes), nil)
	_ = observability.TelemetrySystem.Counter(RelayChunksTotal, float64(chunks), nil)
	_ = observability.TelemetrySystem.Histogram(RelayDuration, duration, labels)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
