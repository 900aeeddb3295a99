package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/ailink"
	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/prompt"
	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core/engine"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	errwrap "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
)

var errQuotaUnconfigured = errors.New("quota store not configured; rate limiting is disabled")

// chatRuntime holds the components behind the chat endpoint.
type chatRuntime struct {
	store      quota.Store
	closeStore func() error
	limiter    *engine.RateLimiter
	assembler  *prompt.Assembler
	client     *ailink.Client
	handler    *handlers.ChatHandler
}

// newChatRuntime wires quota store, limiter, prompt assembler and generation
// client from cfg. A store that cannot be opened is logged and replaced by a
// failing store so the limiter fails open.
func newChatRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*chatRuntime, error) {
	driverName := cfg.Quota.DriverName()

	store, closeStore, err := engine.OpenQuotaStore(ctx, cfg.Quota)
	switch {
	case err != nil:
		if logger != nil {
			logger.Warn("Quota store unavailable; requests will fail open",
				zap.String("driver", driverName),
				zap.Error(err))
		}
	case store == nil:
		if logger != nil {
			logger.Warn("Quota store not configured; rate limiting is disabled",
				zap.String("driver", driverName))
		}
	}

	assembler, err := prompt.DefaultAssembler()
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("load prompt: %w", err)
	}

	client := ailink.NewClient(cfg.AILink, nil)
	if !client.HasCredential() && logger != nil {
		logger.Warn("No generation API key configured; chat requests will fail",
			zap.String("provider", client.Provider()))
	}

	limiter := &engine.RateLimiter{Store: store, Logger: logger, Driver: driverName}

	return &chatRuntime{
		store:      store,
		closeStore: closeStore,
		limiter:    limiter,
		assembler:  assembler,
		client:     client,
		handler: &handlers.ChatHandler{
			Limiter:     limiter,
			Assembler:   assembler,
			Generator:   client,
			Logger:      logger,
			Provider:    client.Provider(),
			MaxDuration: cfg.Chat.MaxDuration,
		},
	}, nil
}

// Close releases the quota store.
func (rt *chatRuntime) Close() error {
	if rt == nil || rt.closeStore == nil {
		return nil
	}
	return rt.closeStore()
}

// checkQuotaStore pings the store. An absent store reports an error so the
// service shows as degraded while rate limiting is off.
func (rt *chatRuntime) checkQuotaStore(ctx context.Context) error {
	if rt.store == nil {
		return errQuotaUnconfigured
	}
	if pinger, ok := rt.store.(quota.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (rt *chatRuntime) checkCredential(context.Context) error {
	if !rt.client.HasCredential() {
		return driver.ErrMissingAPIKey
	}
	return nil
}

// registerHealthChecks installs the serve health checks on hm.
// Only the quota store is degradable: the limiter fails open without it.
func registerHealthChecks(hm *handlers.HealthManager, rt *chatRuntime, identity *appidentity.Identity) {
	hm.RegisterChecker("signal_handlers", handlers.CheckerFunc(func(context.Context) error { return nil }))
	hm.RegisterChecker("telemetry", handlers.CheckerFunc(checkTelemetry))
	hm.RegisterChecker("app_identity", handlers.CheckerFunc(func(context.Context) error {
		return checkIdentity(identity)
	}))
	hm.RegisterDegradable("quota_store", handlers.CheckerFunc(rt.checkQuotaStore))
	hm.RegisterChecker("generation_credential", handlers.CheckerFunc(rt.checkCredential))
}

func checkTelemetry(context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

func checkIdentity(identity *appidentity.Identity) error {
	switch {
	case identity == nil:
		return errwrap.NewConfigInvalidError("app identity missing")
	case identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}
