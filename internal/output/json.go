package output

import (
	"encoding/json"

	"github.com/adrianaguero/chatgate/internal/probe"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

type jsonChunk struct {
	Index int    `json:"index"`
	Size  int    `json:"size"`
	Text  string `json:"text"`
	Hex   string `json:"hex"`
}

type jsonProbe struct {
	*probe.Report
	Passed    bool        `json:"passed"`
	Verdict   string      `json:"verdict"`
	ChunkList []jsonChunk `json:"chunk_list,omitempty"`
}

// FormatProbe renders a probe report, with every chunk when showChunks is set.
func (f *JSONFormatter) FormatProbe(report *probe.Report, showChunks bool) (string, error) {
	if report == nil {
		return "", nil
	}
	out := jsonProbe{Report: report, Passed: report.Passed(), Verdict: verdict(report)}
	if showChunks {
		for i, chunk := range report.Chunks {
			out.ChunkList = append(out.ChunkList, jsonChunk{
				Index: i + 1,
				Size:  len(chunk),
				Text:  string(chunk),
				Hex:   probe.HexDump(chunk),
			})
		}
	}
	return f.marshal(out)
}

// FormatQuotas renders quota rows as a JSON array.
func (f *JSONFormatter) FormatQuotas(rows []QuotaRow) (string, error) {
	if rows == nil {
		rows = []QuotaRow{}
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
