// Package candidate aggregates Evidence into RuleCandidates keyed by a
// normalized rule signature and a scope.
package candidate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrInvalidScope is returned by ParseScope for malformed scope strings.
var ErrInvalidScope = errors.New("invalid scope")

// State is a candidate's lifecycle state.
type State string

const (
	StateOpen          State = "open"
	StatePendingReview State = "pending_review"
	StateNeedsEvidence State = "needs_evidence"
	StateApproved      State = "approved"
	StateRejected      State = "rejected"
)

// Terminal reports whether no automatic transition can leave s.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateOpen, StatePendingReview, StateNeedsEvidence, StateApproved, StateRejected:
		return true
	}
	return false
}

// Scope is where a rule applies. The zero Scope is global. Project and
// FileType refine each other and may both be set.
type Scope struct {
	Project  string `json:"project,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

// IsGlobal reports whether the scope carries no restriction.
func (s Scope) IsGlobal() bool {
	return s.Project == "" && s.FileType == ""
}

// Broaden drops the project restriction and keeps the file type.
func (s Scope) Broaden() Scope {
	return Scope{FileType: s.FileType}
}

// String renders the scope as global, project:<path>, file-type:<ext> or
// project:<path>+file-type:<ext>.
func (s Scope) String() string {
	var parts []string
	if s.Project != "" {
		parts = append(parts, "project:"+s.Project)
	}
	if s.FileType != "" {
		parts = append(parts, "file-type:"+s.FileType)
	}
	if len(parts) == 0 {
		return "global"
	}
	return strings.Join(parts, "+")
}

// ParseScope is the inverse of Scope.String.
func ParseScope(s string) (Scope, error) {
	if s == "" || s == "global" {
		return Scope{}, nil
	}
	var out Scope
	switch {
	case strings.HasPrefix(s, "project:"):
		rest := strings.TrimPrefix(s, "project:")
		if i := strings.LastIndex(rest, "+file-type:"); i >= 0 {
			out.Project, out.FileType = rest[:i], rest[i+len("+file-type:"):]
			if out.FileType == "" {
				return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
			}
		} else {
			out.Project = rest
		}
	case strings.HasPrefix(s, "file-type:"):
		out.FileType = strings.TrimPrefix(s, "file-type:")
	default:
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	if out.Project == "" && out.FileType == "" {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return out, nil
}

// HistoryEntry is one append-only audit record.
type HistoryEntry struct {
	At          time.Time `json:"at"`
	Event       string    `json:"event"`
	From        State     `json:"from,omitempty"`
	To          State     `json:"to,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	DecisionKey string    `json:"decision_key,omitempty"`
}

// Candidate is a proposed rule with its supporting evidence.
type Candidate struct {
	ID           string   `json:"id"`
	Signature    string   `json:"signature"`
	ProposedText string   `json:"proposed_text"`
	ApprovedText string   `json:"approved_text,omitempty"`
	Category     Category `json:"category"`
	Scope        Scope    `json:"scope"`

	// EvidenceIDs only grows. LateEvidenceIDs holds evidence that arrived
	// after the candidate became terminal; it is kept for audit and never
	// scored.
	EvidenceIDs     []string `json:"evidence_ids"`
	LateEvidenceIDs []string `json:"late_evidence_ids,omitempty"`

	// StrongestSignal caches whether any scored evidence carries an
	// explicit correction category.
	StrongestSignal bool `json:"strongest_signal,omitempty"`

	Confidence float64  `json:"confidence"`
	State      State    `json:"state"`
	Conflicts  []string `json:"conflicts,omitempty"`

	// Generalized marks candidates created by promoting a correction seen
	// across several projects to a broader scope.
	Generalized bool `json:"generalized,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastEvidenceAt time.Time `json:"last_evidence_at"`
	PendingSince   time.Time `json:"pending_since,omitempty"`

	// HeldAtEvidence is the evidence count when a reviewer asked for more
	// evidence; the candidate is not resurfaced until it grows past it.
	HeldAtEvidence int `json:"held_at_evidence,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`
}

// Occurrences is the number of supporting evidence records.
func (c *Candidate) Occurrences() int {
	return len(c.EvidenceIDs)
}

// RuleText is the text that gets written once approved.
func (c *Candidate) RuleText() string {
	if c.ApprovedText != "" {
		return c.ApprovedText
	}
	return c.ProposedText
}

// HasConflict reports whether a contradicting candidate exists.
func (c *Candidate) HasConflict() bool {
	return len(c.Conflicts) > 0
}

// HasEvidence reports whether id is already attached (scored or late).
func (c *Candidate) HasEvidence(id string) bool {
	return slices.Contains(c.EvidenceIDs, id) || slices.Contains(c.LateEvidenceIDs, id)
}

// allEvidenceIDs returns scored then late evidence IDs.
func (c *Candidate) allEvidenceIDs() []string {
	return slices.Concat(c.EvidenceIDs, c.LateEvidenceIDs)
}

// HasDecision reports whether a decision with key was already applied.
func (c *Candidate) HasDecision(key string) bool {
	for _, h := range c.History {
		if h.DecisionKey == key {
			return true
		}
	}
	return false
}

// Record appends to the audit history.
func (c *Candidate) Record(e HistoryEntry) {
	c.History = append(c.History, e)
}

// Clone returns a deep copy.
func (c Candidate) Clone() Candidate {
	c.EvidenceIDs = slices.Clone(c.EvidenceIDs)
	c.LateEvidenceIDs = slices.Clone(c.LateEvidenceIDs)
	c.Conflicts = slices.Clone(c.Conflicts)
	c.History = slices.Clone(c.History)
	return c
}

// Filter selects candidates. Zero fields match everything.
type Filter struct {
	IDs       []string
	Signature string
	Scope     *Scope
	States    []State
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Candidate) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, c.ID) {
		return false
	}
	if f.Signature != "" && c.Signature != f.Signature {
		return false
	}
	if f.Scope != nil && c.Scope != *f.Scope {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, c.State) {
		return false
	}
	return true
}
