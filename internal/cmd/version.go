package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, runtime, Gofulmen and Crucible details plus the configured backends.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		identity := GetAppIdentity()
		fmt.Fprintf(out, "%s %s\n", identity.BinaryName, versionInfo.Version)
		if !extended {
			return nil
		}

		fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go: %s\n\n", runtime.Version())

		deps := crucible.GetVersion()
		fmt.Fprintf(out, "Gofulmen: %s\n", deps.Gofulmen)
		fmt.Fprintf(out, "Crucible: %s\n", deps.Crucible)

		writeBackends(cmd, out)
		return nil
	},
}

// writeBackends prints the configured provider and quota driver, if the
// configuration loads.
func writeBackends(cmd *cobra.Command, out io.Writer) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "\nConfig: %v\n", err)
		return
	}
	fmt.Fprintf(out, "\nProvider: %s (%s)\n", cfg.AILink.ProviderName(), cfg.AILink.Model)
	driver := cfg.Quota.DriverName()
	if !cfg.Quota.Configured() {
		driver += " (not configured)"
	}
	fmt.Fprintf(out, "Quota: %s, %d per %s\n", driver, cfg.Quota.QuotaWindow().Limit, cfg.Quota.QuotaWindow().Duration)
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
