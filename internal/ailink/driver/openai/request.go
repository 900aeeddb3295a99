package openai

import (
	"fmt"

	"github.com/adrianaguero/chatgate/internal/ailink/content"
	"github.com/adrianaguero/chatgate/internal/ailink/driver"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		if msg.Role != content.RoleUser && msg.Role != content.RoleAssistant {
			return nil, fmt.Errorf("unsupported message role: %q", msg.Role)
		}
		messages = append(messages, chatMessage{Role: msg.Role, Content: msg.Text()})
	}

	return &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, nil
}
