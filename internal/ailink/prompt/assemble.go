package prompt

import (
	"strings"

	"github.com/adrianaguero/chatgate/internal/core"
)

const (
	knowledgeTag    = "knowledge_base"
	conversationTag = "conversation"

	// KnowledgeOrder places the knowledge base between persona and instructions.
	KnowledgeOrder = 30
)

// Composed is the assembled prompt for one request.
//
// System is built only from static sections and the knowledge base. Caller
// content lives in Messages and is sent through the conversation channel.
type Composed struct {
	System   string
	Messages []core.ChatMessage
}

// Assembler combines static sections and the knowledge base with a conversation.
type Assembler struct {
	Sections  []*Section
	Knowledge *Knowledge
}

// NewAssembler builds an assembler from a registry and knowledge base.
func NewAssembler(reg Registry, knowledge *Knowledge) *Assembler {
	var sections []*Section
	if reg != nil {
		sections = reg.List()
	}
	return &Assembler{Sections: sections, Knowledge: knowledge}
}

// Assemble returns the composed prompt. It has no side effects and returns
// byte-identical output for identical input.
func (a *Assembler) Assemble(messages []core.ChatMessage) *Composed {
	history := make([]core.ChatMessage, len(messages))
	copy(history, messages)

	return &Composed{
		System:   a.System(),
		Messages: history,
	}
}

// System renders the static instruction block.
func (a *Assembler) System() string {
	if a == nil {
		return ""
	}

	blocks := make([]string, 0, len(a.Sections)+1)
	knowledgeDone := a.Knowledge == nil
	for _, section := range a.Sections {
		if section == nil {
			continue
		}
		if !knowledgeDone && section.Config.Order >= KnowledgeOrder {
			blocks = append(blocks, wrap(knowledgeTag, a.Knowledge.Render()))
			knowledgeDone = true
		}
		blocks = append(blocks, wrap(section.TagName(), section.Body))
	}
	if !knowledgeDone {
		blocks = append(blocks, wrap(knowledgeTag, a.Knowledge.Render()))
	}
	return strings.Join(blocks, "\n\n")
}

// Render returns the system block followed by a conversation region.
// Drivers never send this form; it exists for inspection and traces.
func (c *Composed) Render() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.System)
	if len(c.Messages) == 0 {
		return b.String()
	}

	b.WriteString("\n\n<")
	b.WriteString(conversationTag)
	b.WriteString(">\n")
	for _, msg := range c.Messages {
		b.WriteString("[")
		b.WriteString(string(msg.Role))
		b.WriteString("] ")
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	b.WriteString("</")
	b.WriteString(conversationTag)
	b.WriteString(">")
	return b.String()
}

func wrap(tag, body string) string {
	return "<" + tag + ">\n" + strings.TrimSpace(body) + "\n</" + tag + ">"
}
