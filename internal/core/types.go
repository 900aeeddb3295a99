package core

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single turn of caller-supplied conversation history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IsAssistant reports whether the message was authored by the model.
func (m ChatMessage) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// ChatRequest is the body accepted by the chat endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}
