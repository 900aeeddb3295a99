package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/config"
	errwrap "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/metrics"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/server"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	Long: `Start the chat HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the config file and apply the log level

The server stops accepting connections, waits for in-flight streams up to
server.shutdown_timeout, closes the quota store and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(ctx, serveOverrides(cmd))
		if err != nil {
			return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config load failed")
		}

		if err := observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace); err != nil {
			return errwrap.WrapInternal(ctx, err, "logger initialization failed")
		}
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(namespace, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		if cfg.AILink.TracePath != "" && !driver.IsTracingEnabled() {
			if _, err := driver.EnableTracing(cfg.AILink.TracePath); err != nil {
				logger.Warn("Failed to enable tracing", zap.Error(err))
			}
		}

		rt, err := newChatRuntime(ctx, cfg, logger)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "chat initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("chat_path", cfg.Chat.Path),
			zap.String("provider", rt.client.Provider()),
			zap.String("quota_driver", cfg.Quota.DriverName()),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		hm := handlers.NewHealthManager(versionInfo.Version)
		registerHealthChecks(hm, rt, identity)

		handlers.SetAppIdentity(identity)
		handlers.SetServiceInfo(handlers.ServiceInfo{
			Provider:    rt.client.Provider(),
			Model:       cfg.AILink.Model,
			QuotaDriver: cfg.Quota.DriverName(),
		})

		srv := server.New(cfg.Server.Host, cfg.Server.Port,
			server.WithChatHandler(rt.handler),
			server.WithChatPath(cfg.Chat.Path),
			server.WithHealthManager(hm),
			server.WithTimeouts(server.Timeouts{
				Read:  cfg.Server.ReadTimeout,
				Write: cfg.Server.WriteTimeout,
				Idle:  cfg.Server.IdleTimeout,
			}),
			server.WithMetricsPort(cfg.Metrics.Port),
		)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: HTTP server, quota store, metrics, logger.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := rt.Close(); err != nil {
				logger.Warn("Failed to close quota store", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading config")

			reloaded, err := config.Load(ctx, serveOverrides(cmd))
			if err != nil {
				logger.Error("Failed to reload config",
					zap.String("file", config.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config reload failed")
			}

			observability.SetServerLevel(reloaded.Logging.Level)
			logger.Info("Configuration reloaded",
				zap.String("file", config.ConfigFileUsed()),
				zap.String("log_level", reloaded.Logging.Level))
			if reloaded.Quota != cfg.Quota || reloaded.AILink != cfg.AILink || reloaded.Chat != cfg.Chat {
				logger.Warn("Quota, generation and chat settings apply on restart")
			}
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now().Unix())

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			_ = rt.Close()
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

// serveOverrides turns explicitly set --host/--port flags into config overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	listen := map[string]any{}
	if cmd.Flags().Changed("host") {
		listen["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		listen["port"] = serverPort
	}
	if len(listen) > 0 {
		overrides["server"] = listen
	}
	return overrides
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
