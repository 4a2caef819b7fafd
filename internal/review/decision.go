package review

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Kind is the reviewer's verdict.
type Kind string

const (
	KindApprove      Kind = "approve"
	KindApproveEdit  Kind = "approve-with-edit"
	KindReject       Kind = "reject"
	KindNeedEvidence Kind = "need-more-evidence"
)

// Valid reports whether k is a known decision kind.
func (k Kind) Valid() bool {
	switch k {
	case KindApprove, KindApproveEdit, KindReject, KindNeedEvidence:
		return true
	}
	return false
}

// Decision is a reviewer's verdict on one candidate.
type Decision struct {
	CandidateID string    `json:"candidate_id"`
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
	Source      string    `json:"source,omitempty"`
}

// Key identifies the decision. Re-reading the same artifact yields the same
// key, which is how repeated ingestion is detected.
func (d Decision) Key() string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		d.CandidateID,
		string(d.Kind),
		d.Text,
		d.Reason,
		d.DecidedAt.UTC().Format(time.RFC3339Nano),
	}, "\x00")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
