// Package evidence turns correction signals in conversations into Evidence
// records that link a human correction to the assistant turn it responds to.
package evidence

import (
	"time"

	"github.com/fyrsmithlabs/ruleminer/internal/signal"
)

// Evidence is one observed correction. It is created once and never mutated.
type Evidence struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// TriggerID is the human utterance carrying the correction; TargetID is
	// the assistant utterance it corrects. TargetIndex < TriggerIndex always.
	TriggerID    string `json:"trigger_id"`
	TriggerIndex int    `json:"trigger_index"`
	TargetID     string `json:"target_id"`
	TargetIndex  int    `json:"target_index"`

	TriggerText string `json:"trigger_text"`
	TargetText  string `json:"target_text"`

	WorkspacePath string `json:"workspace_path,omitempty"`
	Project       string `json:"project,omitempty"`
	ProjectType   string `json:"project_type,omitempty"`
	FileExt       string `json:"file_ext,omitempty"`

	Category signal.Category `json:"category"`
	Pattern  string          `json:"pattern"`
	RuleText string          `json:"rule_text"`

	Timestamp time.Time `json:"timestamp"`

	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// Explicit reports whether the evidence came from a direct instruction.
func (e Evidence) Explicit() bool {
	return e.Category.Explicit()
}

// Key identifies the triggering utterance; a conversation yields at most one
// Evidence per key.
func (e Evidence) Key() string {
	return e.ConversationID + "/" + e.TriggerID
}

// SkipReason explains why a signal produced no Evidence.
type SkipReason string

const (
	SkipNoTarget    SkipReason = "no_target"
	SkipPositiveAck SkipReason = "positive_ack"
	SkipEmptyRule   SkipReason = "empty_rule"
)

// Skip records a correction that was dropped. Skips are reportable, not
// failures.
type Skip struct {
	Reason         SkipReason
	ConversationID string
	UtteranceID    string
}

// Batch is the output of collecting one or more conversations.
type Batch struct {
	Evidence     []Evidence
	Skips        []Skip
	PositiveAcks int
}

func (b *Batch) merge(o Batch) {
	b.Evidence = append(b.Evidence, o.Evidence...)
	b.Skips = append(b.Skips, o.Skips...)
	b.PositiveAcks += o.PositiveAcks
}
