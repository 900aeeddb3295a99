package output

import (
	"fmt"
	"strings"

	"github.com/adrianaguero/chatgate/internal/probe"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatProbe renders the probe summary as a two-column table.
func (f *MarkdownFormatter) FormatProbe(report *probe.Report, showChunks bool) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("## Chat probe\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	row := func(field, value string) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", field, escapeMarkdownCell(value)))
	}
	row("URL", report.URL)
	row("Status", fmt.Sprint(report.Status))
	row("Total duration", ms(report.Duration))
	row("Chunks received", fmt.Sprint(report.ChunkCount))
	row("Content length", fmt.Sprintf("%d chars", report.ContentLength))
	if report.ErrorBody != "" {
		row("Body", report.ErrorBody)
	} else {
		row("Preview", report.Preview)
	}
	if report.ReadError != "" {
		row("Read error", report.ReadError)
	}
	sb.WriteString(fmt.Sprintf("\n**Result**: %s\n", verdict(report)))

	if showChunks && len(report.Chunks) > 0 {
		sb.WriteString("\n| # | Size | Hex |\n|---|------|-----|\n")
		for i, chunk := range report.Chunks {
			sb.WriteString(fmt.Sprintf("| %d | %d | `%s` |\n", i+1, len(chunk), probe.HexDump(chunk)))
		}
	}
	return sb.String(), nil
}

// FormatQuotas renders quota rows as a markdown table.
func (f *MarkdownFormatter) FormatQuotas(rows []QuotaRow) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Identifier | Used | Remaining | Reset |\n")
	sb.WriteString("|------------|------|-----------|-------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d/%d | %d | %s |\n",
			escapeMarkdownCell(row.Identifier), row.Used, row.Limit, row.Remaining, resetLabel(row.ResetAt)))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
