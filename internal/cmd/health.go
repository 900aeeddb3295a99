package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core"
	errwrap "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/observability"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check to verify the server can start.

Checks that the configuration loads, the system prompt assembles and the
quota store answers when one is configured. A missing generation API key or
quota store is reported as a warning because serve still starts without them.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		cfg, err := loadConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded", zap.String("file", displayConfigFile()))

		// Pass no logger: the outcomes below are reported as check lines.
		rt, err := newChatRuntime(ctx, cfg, nil)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Chat components failed to initialize", err)
			return
		}
		defer func() { _ = rt.Close() }()

		composed := rt.assembler.Assemble([]core.ChatMessage{{Role: core.RoleUser, Content: "hola"}})
		if composed == nil || composed.System == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "System prompt is empty", errwrap.NewConfigInvalidError("system prompt assembled empty"))
			return
		}
		logger.Info("✅ System prompt assembles", zap.Int("bytes", len(composed.System)))

		switch err := rt.checkQuotaStore(ctx); {
		case errors.Is(err, errQuotaUnconfigured):
			logger.Warn("⚠️  Quota store not configured; rate limiting would be disabled")
		case err != nil:
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Quota store unreachable", err)
			return
		default:
			logger.Info("✅ Quota store reachable", zap.String("driver", cfg.Quota.DriverName()))
		}

		if err := rt.checkCredential(ctx); err != nil {
			logger.Warn(fmt.Sprintf("⚠️  No %s API key configured; chat requests would fail", rt.client.Provider()))
		} else {
			logger.Info("✅ Generation credential present", zap.String("provider", rt.client.Provider()))
		}

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func displayConfigFile() string {
	if file := config.ConfigFileUsed(); file != "" {
		return file
	}
	return "(defaults and environment)"
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "timeout for the whole check")
}
