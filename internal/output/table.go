package output

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/adrianaguero/chatgate/internal/probe"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatProbe renders the probe summary and, with showChunks, a chunk table.
func (f *TableFormatter) FormatProbe(report *probe.Report, showChunks bool) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Chat probe")
	t.AppendRow(table.Row{"URL", report.URL})
	t.AppendRow(table.Row{"Status", report.Status})
	t.AppendRow(table.Row{"Total duration", ms(report.Duration)})
	if report.ChunkCount > 0 {
		t.AppendRow(table.Row{"First byte", ms(report.FirstByte)})
	}
	t.AppendRow(table.Row{"Chunks received", report.ChunkCount})
	t.AppendRow(table.Row{"Content length", fmt.Sprintf("%d chars (%d bytes)", report.ContentLength, report.Bytes)})
	if report.RateLimit != nil {
		t.AppendRow(table.Row{"Rate limit", fmt.Sprintf("%d/%d remaining, reset %s",
			report.RateLimit.Remaining, report.RateLimit.Limit, resetLabel(report.RateLimit.Reset))})
	}
	if report.ErrorBody != "" {
		t.AppendRow(table.Row{"Body", report.ErrorBody})
	} else {
		t.AppendRow(table.Row{"Preview", strconv.Quote(report.Preview)})
	}
	if report.ReadError != "" {
		t.AppendRow(table.Row{"Read error", report.ReadError})
	}
	t.AppendFooter(table.Row{"Result", verdict(report)})

	rendered := t.Render()
	if !showChunks || len(report.Chunks) == 0 {
		return rendered, nil
	}

	chunks := table.NewWriter()
	chunks.SetStyle(table.StyleRounded)
	chunks.AppendHeader(table.Row{"#", "Size", "Text", "Hex"})
	for i, chunk := range report.Chunks {
		chunks.AppendRow(table.Row{i + 1, len(chunk), strconv.Quote(string(chunk)), probe.HexDump(chunk)})
	}
	return rendered + "\n" + chunks.Render(), nil
}

// FormatQuotas renders one row per identifier.
func (f *TableFormatter) FormatQuotas(rows []QuotaRow) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Identifier", "Used", "Remaining", "Reset"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Identifier,
			fmt.Sprintf("%d/%d", row.Used, row.Limit),
			row.Remaining,
			resetLabel(row.ResetAt),
		})
	}
	if len(rows) == 0 {
		t.AppendFooter(table.Row{"(no recorded admissions)", "", "", ""})
	}
	return t.Render(), nil
}
