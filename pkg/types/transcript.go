package types

import "time"

// Message roles in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptMessage is a single role-tagged message in a conversation.
type TranscriptMessage struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the durable, literal record of one conversation. It is
// created on the first recorded exchange, appended to incrementally, and
// closed when the conversation ends. Extraction quality never affects it.
type Transcript struct {
	CharacterID    string              `json:"characterId"`
	ConversationID string              `json:"conversationId"`
	StartedAt      time.Time           `json:"startedAt"`
	EndedAt        time.Time           `json:"endedAt"`
	MessageCount   int                 `json:"messageCount"`
	Messages       []TranscriptMessage `json:"messages"`
}

// AppendMessages adds messages and updates the end timestamp and count.
func (t *Transcript) AppendMessages(msgs ...TranscriptMessage) {
	t.Messages = append(t.Messages, msgs...)
	t.MessageCount = len(t.Messages)
	if n := len(t.Messages); n > 0 {
		t.EndedAt = t.Messages[n-1].Timestamp
	}
}
