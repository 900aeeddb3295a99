package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/core/engine"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/adrianaguero/chatgate/internal/core/store"
	"github.com/adrianaguero/chatgate/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and reset per-client chat quotas",
	Long: `Inspect and reset the sliding-window quota kept for each client identifier.

Commands run against the store selected by quota.driver. The memory driver
lives inside the serving process, so these commands only see their own state
when it is selected.`,
}

// quotaHandle is an opened quota store plus the settings it was built from.
type quotaHandle struct {
	cfg   *config.Config
	store quota.Store
	close func() error
}

func openQuota(ctx context.Context) (*quotaHandle, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	s, closeStore, err := engine.OpenQuotaStore(ctx, cfg.Quota)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("quota store not configured for driver %q", cfg.Quota.DriverName())
	}
	return &quotaHandle{cfg: cfg, store: s, close: closeStore}, nil
}

func (h *quotaHandle) Close() error {
	return h.close()
}

func (h *quotaHandle) admin() (quota.Admin, error) {
	admin, ok := h.store.(quota.Admin)
	if !ok {
		return nil, fmt.Errorf("quota driver %q does not support inspection", h.cfg.Quota.DriverName())
	}
	return admin, nil
}

// sqlStore returns the SQL store backing bulk list and reset operations.
func (h *quotaHandle) sqlStore() (*store.Store, error) {
	s, ok := h.store.(*store.Store)
	if !ok {
		return nil, fmt.Errorf("listing and bulk reset need the libsql or postgres driver, not %q", h.cfg.Quota.DriverName())
	}
	return s, nil
}

func decisionRow(identifier string, d core.QuotaDecision) output.QuotaRow {
	return output.QuotaRow{
		Identifier: identifier,
		Used:       d.Limit - d.Remaining,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetAt:    d.ResetAt,
	}
}

func entryRow(window core.QuotaWindow, e store.QuotaEntry) output.QuotaRow {
	decision := quota.Decide(window, e.Count < window.Limit, e.Count, e.Oldest.UnixMilli())
	r := decisionRow(e.Identifier, decision)
	r.Used = e.Count
	r.Oldest = e.Oldest
	r.Newest = e.Newest
	return r
}

func writeQuotaRows(cmd *cobra.Command, name string, rows []output.QuotaRow) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	rendered, err := output.NewFormatter(format).FormatQuotas(rows)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, name, rendered)
}

var quotaInspectCmd = &cobra.Command{
	Use:   "inspect <identifier>",
	Short: "Show the current window for one client without consuming it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identifier, err := quota.NormalizeIdentifier(args[0])
		if err != nil {
			return err
		}

		h, err := openQuota(cmd.Context())
		if err != nil {
			return err
		}
		defer h.Close() // nolint:errcheck // best-effort cleanup

		admin, err := h.admin()
		if err != nil {
			return err
		}
		decision, err := admin.Inspect(cmd.Context(), identifier)
		if err != nil {
			return err
		}
		return writeQuotaRows(cmd, "quota.inspect", []output.QuotaRow{decisionRow(identifier, decision)})
	},
}

var quotaListPrefix string

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with admissions in the current window",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openQuota(cmd.Context())
		if err != nil {
			return err
		}
		defer h.Close() // nolint:errcheck // best-effort cleanup

		s, err := h.sqlStore()
		if err != nil {
			return err
		}

		q := store.QuotaQuery{All: quotaListPrefix == "", Prefix: quotaListPrefix}
		entries, err := s.ListQuotas(cmd.Context(), q)
		if err != nil {
			return err
		}

		window := h.cfg.Quota.QuotaWindow()
		rows := make([]output.QuotaRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, entryRow(window, e))
		}
		return writeQuotaRows(cmd, "quota.list", rows)
	},
}

var (
	quotaResetAll    bool
	quotaResetPrefix string
	quotaResetYes    bool
	quotaResetDryRun bool
)

var quotaResetCmd = &cobra.Command{
	Use:   "reset [identifier]",
	Short: "Forget recorded admissions so clients get a full window again",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := store.QuotaQuery{All: quotaResetAll, Prefix: quotaResetPrefix}
		if len(args) == 1 {
			q.Identifier = args[0]
		}
		if err := q.Validate(); err != nil {
			return err
		}
		if q.All && !quotaResetYes && !quotaResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		h, err := openQuota(cmd.Context())
		if err != nil {
			return err
		}
		defer h.Close() // nolint:errcheck // best-effort cleanup

		out := cmd.OutOrStdout()

		// Single identifiers work on every driver.
		if q.Identifier != "" && !q.All {
			identifier, err := quota.NormalizeIdentifier(q.Identifier)
			if err != nil {
				return err
			}
			admin, err := h.admin()
			if err != nil {
				return err
			}
			if quotaResetDryRun {
				decision, err := admin.Inspect(cmd.Context(), identifier)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Would reset %s (%d/%d used)\n", identifier, decision.Limit-decision.Remaining, decision.Limit)
				return err
			}
			if err := admin.Reset(cmd.Context(), identifier); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "Reset quota for %s\n", identifier)
			return err
		}

		s, err := h.sqlStore()
		if err != nil {
			return err
		}
		entries, err := s.ListQuotas(cmd.Context(), q)
		if err != nil {
			return err
		}
		if quotaResetDryRun {
			_, err = fmt.Fprintf(out, "Would reset %d client(s)\n", len(entries))
			return err
		}
		deleted, err := s.ResetQuotas(cmd.Context(), q)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "Reset %d client(s), deleted %d admission(s)\n", len(entries), deleted)
		return err
	},
}

var quotaPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete admissions that fell out of the window (SQL drivers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openQuota(cmd.Context())
		if err != nil {
			return err
		}
		defer h.Close() // nolint:errcheck // best-effort cleanup

		s, err := h.sqlStore()
		if err != nil {
			return err
		}
		deleted, err := s.Prune(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired admission(s)\n", deleted)
		return err
	},
}

func addRenderFlags(c *cobra.Command) {
	c.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	c.Flags().String("out", "", "Write output to a file (default stdout)")
	c.Flags().String("out-dir", "", "Write output to a directory")
}

func init() {
	addRenderFlags(quotaInspectCmd)
	addRenderFlags(quotaListCmd)
	quotaListCmd.Flags().StringVar(&quotaListPrefix, "prefix", "", "List identifiers with matching prefix")

	quotaResetCmd.Flags().BoolVar(&quotaResetAll, "all", false, "Reset every identifier")
	quotaResetCmd.Flags().StringVar(&quotaResetPrefix, "prefix", "", "Reset identifiers with matching prefix")
	quotaResetCmd.Flags().BoolVar(&quotaResetYes, "yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().BoolVar(&quotaResetDryRun, "dry-run", false, "Show what would be reset")

	quotaCmd.AddCommand(quotaInspectCmd, quotaListCmd, quotaResetCmd, quotaPruneCmd)
	rootCmd.AddCommand(quotaCmd)
}
