package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/driver/sse"
)

const doneSentinel = "[DONE]"

type chatCompletionChunk struct {
	Choices []chunkChoice `json:"choices"`
	Error   *apiError     `json:"error,omitempty"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content string `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func decodeEvent(ev sse.Event) ([]byte, bool, error) {
	data := strings.TrimSpace(ev.Data)
	if data == "" {
		return nil, false, nil
	}
	if data == doneSentinel {
		return nil, true, nil
	}

	var chunk chatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, false, fmt.Errorf("decode stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return nil, false, &driver.ProviderError{
			Provider:    "openai",
			Message:     chunk.Error.Message,
			RawResponse: []byte(data),
		}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return nil, false, nil
	}
	return []byte(chunk.Choices[0].Delta.Content), false, nil
}
