package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/adrianaguero/chatgate/internal/ailink"
	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/output"
)

var (
	doctorLive    bool
	doctorTimeout time.Duration
)

type doctorCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

type doctorReport struct {
	Version  string        `json:"version"`
	Go       string        `json:"go"`
	Gofulmen string        `json:"gofulmen"`
	Crucible string        `json:"crucible"`
	Checks   []doctorCheck `json:"checks"`
	OK       bool          `json:"ok"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration, quota store and provider reachability",
	Long: `Run layered diagnostics: configuration, prompt, quota store, credential,
DNS and TCP reachability of the generation provider. With --live a short
generation stream is opened and its first chunk read, which spends one
provider request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		deps := crucible.GetVersion()
		report := doctorReport{
			Version:  versionInfo.Version,
			Go:       runtime.Version(),
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
			Checks:   runDoctorChecks(ctx, doctorLive),
		}
		report.OK = true
		for _, c := range report.Checks {
			if !c.OK && !c.Skipped {
				report.OK = false
			}
		}

		if err := writeDoctorReport(cmd.OutOrStdout(), format, report); err != nil {
			return err
		}
		if !report.OK {
			return errors.New("doctor found problems")
		}
		return nil
	},
}

func runDoctorChecks(ctx context.Context, live bool) []doctorCheck {
	var checks []doctorCheck
	timed := func(name string, fn func() (string, error)) bool {
		started := time.Now()
		detail, err := fn()
		c := doctorCheck{Name: name, OK: err == nil, LatencyMS: time.Since(started).Milliseconds(), Detail: detail}
		if err != nil {
			c.Error = err.Error()
		}
		checks = append(checks, c)
		return err == nil
	}
	skip := func(name, reason string) {
		checks = append(checks, doctorCheck{Name: name, Skipped: true, Detail: reason})
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		checks = append(checks, doctorCheck{Name: "config", Error: err.Error()})
		return checks
	}
	checks = append(checks, doctorCheck{Name: "config", OK: true, Detail: displayConfigFile()})

	rt, err := newChatRuntime(ctx, cfg, nil)
	if err != nil {
		checks = append(checks, doctorCheck{Name: "prompt", Error: err.Error()})
		return checks
	}
	defer func() { _ = rt.Close() }()

	timed("prompt", func() (string, error) {
		system := rt.assembler.System()
		if system == "" {
			return "", errors.New("system prompt is empty")
		}
		return fmt.Sprintf("%d bytes, %d sections", len(system), len(rt.assembler.Sections)), nil
	})

	if rt.store == nil {
		skip("quota_store", errQuotaUnconfigured.Error())
	} else {
		timed("quota_store", func() (string, error) {
			return cfg.Quota.DriverName(), rt.checkQuotaStore(ctx)
		})
	}

	if !timed("credential", func() (string, error) {
		return rt.client.Provider(), rt.checkCredential(ctx)
	}) {
		skip("dns", "no credential")
		skip("tcp", "no credential")
		skip("generation", "no credential")
		return checks
	}

	resolved, err := ailink.NewRegistry(cfg.AILink, nil).Resolve("")
	if err != nil {
		checks = append(checks, doctorCheck{Name: "provider", Error: err.Error()})
		return checks
	}
	host, port, err := providerAddress(resolved.BaseURL)
	if err != nil {
		checks = append(checks, doctorCheck{Name: "provider", Error: err.Error()})
		return checks
	}

	if !timed("dns", func() (string, error) {
		addrs, err := net.DefaultResolver.LookupHost(ctx, host)
		if err != nil {
			return host, err
		}
		return fmt.Sprintf("%s -> %d address(es)", host, len(addrs)), nil
	}) {
		skip("tcp", "dns failed")
		skip("generation", "dns failed")
		return checks
	}

	if !timed("tcp", func() (string, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
		if err != nil {
			return host + ":" + port, err
		}
		_ = conn.Close()
		return host + ":" + port, nil
	}) {
		skip("generation", "tcp failed")
		return checks
	}

	if !live {
		skip("generation", "use --live to open a stream")
		return checks
	}
	timed("generation", func() (string, error) {
		return firstChunk(ctx, rt)
	})
	return checks
}

// firstChunk opens a generation stream and reads until the first non-empty chunk.
func firstChunk(ctx context.Context, rt *chatRuntime) (string, error) {
	composed := rt.assembler.Assemble([]core.ChatMessage{{Role: core.RoleUser, Content: "Responde solo: ok"}})
	stream, err := rt.client.Generate(ctx, composed)
	if err != nil {
		return "", err
	}
	defer stream.Close() // nolint:errcheck // best-effort cleanup

	for {
		chunk, err := stream.Next(ctx)
		if len(chunk) > 0 {
			return fmt.Sprintf("first chunk %d bytes", len(chunk)), nil
		}
		if errors.Is(err, io.EOF) {
			return "", errors.New("stream ended without content")
		}
		if err != nil {
			return "", err
		}
	}
}

func providerAddress(baseURL string) (string, string, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid provider base URL %q", baseURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return u.Hostname(), port, nil
}

func writeDoctorReport(w io.Writer, format output.Format, report doctorReport) error {
	if format == output.FormatJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s %s (go %s, gofulmen %s, crucible %s)", GetAppIdentity().BinaryName, report.Version, report.Go, report.Gofulmen, report.Crucible))
	t.AppendHeader(table.Row{"Check", "Result", "Latency", "Detail"})
	for _, c := range report.Checks {
		result := "✅"
		switch {
		case c.Skipped:
			result = "-"
		case !c.OK:
			result = "❌"
		}
		detail := c.Detail
		if c.Error != "" {
			detail = c.Error
		}
		latency := ""
		if c.LatencyMS > 0 {
			latency = fmt.Sprintf("%dms", c.LatencyMS)
		}
		t.AppendRow(table.Row{c.Name, result, latency, detail})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorLive, "live", false, "Open a real generation stream (spends one provider request)")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 30*time.Second, "Timeout for all checks")
	doctorCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
}
