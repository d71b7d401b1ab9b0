package a2a

import "strings"

const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

/*
Message represents all non‑artifact communication between client & agent.
*/
type Message struct {
	Role     string         `json:"role"` // "user" or "agent"
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeText, Text: text},
		},
	}
}

func NewDataMessage(role string, data map[string]any) *Message {
	return &Message{
		Role: role,
		Parts: []Part{
			{Type: PartTypeData, Data: data},
		},
	}
}

/*
Clone returns a deep copy; a nil message stays nil.
*/
func (msg *Message) Clone() *Message {
	if msg == nil {
		return nil
	}

	return &Message{
		Role:     msg.Role,
		Parts:    cloneParts(msg.Parts),
		Metadata: cloneMap(msg.Metadata),
	}
}

func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}

	out := make([]Message, len(messages))

	for i := range messages {
		out[i] = *messages[i].Clone()
	}

	return out
}
