package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/driver/sse"
)

type streamChunk struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      contentPayload `json:"content"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// decodeEvent concatenates the text parts of the first candidate.
// The stream ends when the body ends; finishReason is informational.
func decodeEvent(ev sse.Event) ([]byte, bool, error) {
	data := strings.TrimSpace(ev.Data)
	if data == "" {
		return nil, false, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, false, fmt.Errorf("decode stream chunk: %w", err)
	}

	if chunk.Error != nil {
		message := chunk.Error.Message
		if chunk.Error.Status != "" {
			message = chunk.Error.Status + ": " + message
		}
		return nil, false, &driver.ProviderError{
			Provider:    "gemini",
			StatusCode:  chunk.Error.Code,
			Message:     message,
			RawResponse: []byte(data),
		}
	}

	if len(chunk.Candidates) == 0 {
		return nil, false, nil
	}

	var b strings.Builder
	for _, p := range chunk.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return nil, false, nil
	}
	return []byte(b.String()), false, nil
}
