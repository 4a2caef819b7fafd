package conversation

import "time"

// Role identifies who produced an utterance.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Utterance is one message in a conversation. Utterances are immutable once
// handed to the pipeline.
type Utterance struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`

	// ReplyTo optionally names the utterance this one responds to.
	ReplyTo string `json:"reply_to,omitempty"`

	// FilePaths lists files the utterance touched outside of its text,
	// e.g. through tool calls.
	FilePaths []string `json:"file_paths,omitempty"`
}

// Conversation is an ordered utterance sequence from one workspace.
type Conversation struct {
	ID            string      `json:"id"`
	WorkspacePath string      `json:"workspace_path"`
	Utterances    []Utterance `json:"utterances"`
}

// Index returns the position of the utterance with id, or -1.
func (c Conversation) Index(id string) int {
	if id == "" {
		return -1
	}
	for i, u := range c.Utterances {
		if u.ID == id {
			return i
		}
	}
	return -1
}
