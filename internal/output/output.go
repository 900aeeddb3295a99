// Package output renders probe reports and quota listings for the CLI.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrianaguero/chatgate/internal/probe"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// QuotaRow is one identifier's quota window as shown to operators.
type QuotaRow struct {
	Identifier string `json:"identifier"`
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	// ResetAt is Unix milliseconds; 0 when nothing is recorded.
	ResetAt int64     `json:"reset_at"`
	Oldest  time.Time `json:"oldest,omitempty"`
	Newest  time.Time `json:"newest,omitempty"`
}

// Formatter renders CLI results.
type Formatter interface {
	FormatProbe(report *probe.Report, showChunks bool) (string, error)
	FormatQuotas(rows []QuotaRow) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func verdict(report *probe.Report) string {
	switch {
	case report.Passed():
		return "PASS"
	case report.Status != 200:
		return fmt.Sprintf("FAIL: HTTP %d", report.Status)
	case report.ReadError != "":
		return "FAIL: stream aborted"
	default:
		return "FAIL: content too short, likely cut off"
	}
}

func resetLabel(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
