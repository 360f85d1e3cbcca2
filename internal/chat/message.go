package chat

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartTypeText is the only content part kind carried over the wire.
const PartTypeText = "text"

// Part is one ordered fragment of a message's content
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is a single conversation entry: a role plus an ordered
// sequence of content parts. Display text is the in-order
// concatenation of the text parts.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage creates a message with a single text part
func NewTextMessage(role Role, text string) Message {
	return Message{
		ID:    uuid.NewString(),
		Role:  role,
		Parts: []Part{{Type: PartTypeText, Text: text}},
	}
}

// Text returns the concatenated text of all text parts, in sequence order
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// AppendText grows the trailing text part, creating one if the message
// ends with a non-text part or has no parts yet.
func (m *Message) AppendText(text string) {
	if n := len(m.Parts); n > 0 && m.Parts[n-1].Type == PartTypeText {
		m.Parts[n-1].Text += text
		return
	}
	m.Parts = append(m.Parts, Part{Type: PartTypeText, Text: text})
}
