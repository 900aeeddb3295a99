package engine

import (
	"context"
	"errors"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/adrianaguero/chatgate/internal/metrics"
)

// Tier names which branch of the fail-open policy produced a decision.
type Tier string

const (
	TierUnconfigured Tier = "unconfigured"
	TierStoreError   Tier = "store_error"
	TierNormal       Tier = "normal"
)

// Sentinel decisions for the fail-open tiers. ResetAt is unknown in both.
var (
	UnconfiguredDecision = core.QuotaDecision{Allowed: true, Limit: 100, Remaining: 99}
	StoreErrorDecision   = core.QuotaDecision{Allowed: true, Limit: 10, Remaining: 10}
)

// RateLimiter applies the per-identifier quota and fails open.
//
// It never denies unless the store explicitly said so. With no store every
// request gets UnconfiguredDecision; when the store errors the request gets
// StoreErrorDecision and the failure is logged.
type RateLimiter struct {
	Store  quota.Store
	Logger *logging.Logger

	// Driver labels store error metrics and logs.
	Driver string
}

// Check returns the quota decision for identifier.
func (r *RateLimiter) Check(ctx context.Context, identifier string) core.QuotaDecision {
	decision, _ := r.CheckTier(ctx, identifier)
	return decision
}

// CheckTier is Check plus the tier that produced the decision.
func (r *RateLimiter) CheckTier(ctx context.Context, identifier string) (core.QuotaDecision, Tier) {
	if r == nil || r.Store == nil {
		metrics.RecordQuotaDecision(string(TierUnconfigured), true)
		return UnconfiguredDecision, TierUnconfigured
	}

	decision, err := r.Store.TryAcquire(ctx, identifier)
	if err != nil {
		r.logStoreError(identifier, err)
		metrics.RecordQuotaStoreError(r.Driver)
		metrics.RecordQuotaDecision(string(TierStoreError), true)
		return StoreErrorDecision, TierStoreError
	}

	metrics.RecordQuotaDecision(string(TierNormal), decision.Allowed)
	return decision, TierNormal
}

func (r *RateLimiter) logStoreError(identifier string, err error) {
	if r.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("identifier", identifier),
		zap.String("driver", r.Driver),
		zap.Error(err),
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		fields = append(fields, zap.Bool("context_done", true))
	}
	r.Logger.Warn("Quota store failed, allowing request", fields...)
}
