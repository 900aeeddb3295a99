package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/output"
	"github.com/adrianaguero/chatgate/internal/probe"
)

var (
	probeURL      string
	probeMessages []string
	probeChunks   bool
	probeTimeout  time.Duration
	probeNoFail   bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send a chat request to a running server and check the stream",
	Long: `Send a conversation to a running chat endpoint, read the streamed reply and
report status, total duration, chunk count, content length and a preview.

A reply shorter than 10 characters is reported as cut off. --chunks prints
every received chunk with its hex dump, which shows exactly where a stream
was split or truncated. The command fails unless the probe passes; use
--no-fail to only report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		target := probeURL
		if target == "" {
			target = chatURLFromConfig(cmd.Context())
		}

		messages := probeMessages
		if len(messages) == 0 {
			messages = []string{probe.DefaultMessage}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()

		observability.CLILogger.Debug("Probing chat endpoint", zap.String("url", target), zap.Int("messages", len(messages)))

		p := &probe.Prober{
			Client:      &http.Client{},
			URL:         target,
			ToolVersion: versionInfo.Version,
		}
		report, err := p.Probe(ctx, conversation(messages))
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatProbe(report, probeChunks)
		if err != nil {
			return err
		}
		if err := writeRendered(cmd, format, "probe", rendered); err != nil {
			return err
		}

		if !report.Passed() && !probeNoFail {
			return fmt.Errorf("probe failed: status %d, %d chars received", report.Status, report.ContentLength)
		}
		return nil
	},
}

// chatURLFromConfig points at the configured server, or probe.DefaultURL
// when the configuration does not load.
func chatURLFromConfig(ctx context.Context) string {
	cfg, err := config.Load(ctx)
	if err != nil {
		return probe.DefaultURL
	}
	host := strings.TrimSpace(cfg.Server.Host)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	path := cfg.Chat.Path
	if !strings.HasPrefix(path, "/") {
		path = "/api/chat"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)) + path
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeURL, "url", "", "Chat endpoint URL (default from server.host, server.port and chat.path)")
	probeCmd.Flags().StringArrayVarP(&probeMessages, "message", "m", nil, "Conversation turn (repeatable; alternates user/assistant)")
	probeCmd.Flags().BoolVar(&probeChunks, "chunks", false, "Print every chunk with its hex dump")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 60*time.Second, "Timeout for the whole request including the stream")
	probeCmd.Flags().BoolVar(&probeNoFail, "no-fail", false, "Exit successfully even when the probe fails")
	addRenderFlags(probeCmd)
}
