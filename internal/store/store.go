// Package store persists evidence, candidates and run records. All mutation
// happens inside Update, which commits or rolls back as a unit.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Run is the persisted record of one pipeline run.
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	// PutEvidence inserts ev and reports whether it was new. Evidence with
	// the same conversation and trigger as a stored record is a duplicate.
	PutEvidence(ctx context.Context, ev evidence.Evidence) (bool, error)
	// Evidence returns the records for ids in the same order. A missing ID
	// yields ErrNotFound.
	Evidence(ctx context.Context, ids []string) ([]evidence.Evidence, error)
	CountEvidence(ctx context.Context) (int, error)

	Candidates(ctx context.Context, f candidate.Filter) ([]candidate.Candidate, error)
	Candidate(ctx context.Context, id string) (candidate.Candidate, error)
	PutCandidate(ctx context.Context, c candidate.Candidate) error

	PutRun(ctx context.Context, r Run) error
	// LastRun returns the most recently recorded run.
	LastRun(ctx context.Context) (Run, error)
}

// Store is a transactional repository.
type Store interface {
	// Update runs fn in a read-write transaction. The transaction commits
	// only when fn returns nil.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a transaction whose writes are discarded.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Open returns a store for driver. path is ignored by the memory driver.
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
