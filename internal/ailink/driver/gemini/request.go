package gemini

import (
	"fmt"

	"github.com/adrianaguero/chatgate/internal/ailink/content"
	"github.com/adrianaguero/chatgate/internal/ailink/driver"
)

type generateRequest struct {
	SystemInstruction *contentPayload   `json:"systemInstruction,omitempty"`
	Contents          []contentPayload  `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type contentPayload struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

func buildGenerateRequest(req *driver.Request) (*generateRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contents := make([]contentPayload, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role, err := mapRole(msg.Role)
		if err != nil {
			return nil, err
		}
		contents = append(contents, contentPayload{
			Role:  role,
			Parts: []part{{Text: msg.Text()}},
		})
	}

	payload := &generateRequest{Contents: contents}
	if req.System != "" {
		payload.SystemInstruction = &contentPayload{Parts: []part{{Text: req.System}}}
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		payload.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	return payload, nil
}

func mapRole(role string) (string, error) {
	switch role {
	case content.RoleUser:
		return "user", nil
	case content.RoleAssistant:
		return "model", nil
	default:
		return "", fmt.Errorf("unsupported message role: %q", role)
	}
}
