package pipeline

import "maps"

// Run statuses recorded in the store.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Skip reasons raised by the pipeline itself. Collection and artifact
// parsing contribute their own reasons.
const (
	SkipDuplicateEvidence = "duplicate_evidence"
	SkipEmptySignature    = "empty_signature"
	SkipUnknownCandidate  = "unknown_candidate"
	SkipAlreadyApplied    = "already_applied"
	SkipStale             = "stale"
	SkipTerminal          = "terminal"
	SkipNotReviewable     = "not_reviewable"
	SkipInvalidDecision   = "invalid_decision"
	SkipUnchanged         = "unchanged"
)

// UnitError is a failure confined to one candidate or document. The rest of
// the run proceeds.
type UnitError struct {
	Stage string `json:"stage"`
	Unit  string `json:"unit"`
	Err   string `json:"error"`
}

// Summary is the outcome of one run.
type Summary struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	Conversations int    `json:"conversations"`

	NewEvidence  int `json:"new_evidence"`
	PositiveAcks int `json:"positive_acks"`

	CandidatesCreated int `json:"candidates_created"`
	CandidatesUpdated int `json:"candidates_updated"`

	AutoApproved     int `json:"auto_approved"`
	ApprovedByReview int `json:"approved_by_review"`
	Pending          int `json:"pending"`
	NeedsEvidence    int `json:"needs_evidence"`
	Rejected         int `json:"rejected"`

	DocumentsWritten   int `json:"documents_written"`
	DocumentsUnchanged int `json:"documents_unchanged"`
	ArtifactsArchived  int `json:"artifacts_archived"`

	Skipped map[string]int `json:"skipped,omitempty"`
	Errors  []UnitError    `json:"errors,omitempty"`
}

func newSummary() *Summary {
	return &Summary{Skipped: make(map[string]int)}
}

func (s *Summary) skip(reason string) {
	s.Skipped[reason]++
}

func (s *Summary) fail(stage, unit string, err error) {
	s.Errors = append(s.Errors, UnitError{Stage: stage, Unit: unit, Err: err.Error()})
}

// merge folds a committed stage delta into s.
func (s *Summary) merge(d *Summary) {
	s.NewEvidence += d.NewEvidence
	s.PositiveAcks += d.PositiveAcks
	s.CandidatesCreated += d.CandidatesCreated
	s.CandidatesUpdated += d.CandidatesUpdated
	s.AutoApproved += d.AutoApproved
	s.ApprovedByReview += d.ApprovedByReview
	s.Pending += d.Pending
	s.NeedsEvidence += d.NeedsEvidence
	s.Rejected += d.Rejected
	s.DocumentsWritten += d.DocumentsWritten
	s.DocumentsUnchanged += d.DocumentsUnchanged
	s.ArtifactsArchived += d.ArtifactsArchived
	for reason, n := range d.Skipped {
		s.Skipped[reason] += n
	}
	s.Errors = append(s.Errors, d.Errors...)
}

// SkippedTotal is the number of skipped units across all reasons.
func (s *Summary) SkippedTotal() int {
	n := 0
	for v := range maps.Values(s.Skipped) {
		n += v
	}
	return n
}
