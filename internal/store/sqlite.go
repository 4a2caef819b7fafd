package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

const schema = `
CREATE TABLE IF NOT EXISTS evidence (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	trigger_id      TEXT NOT NULL,
	project         TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	data            TEXT NOT NULL,
	UNIQUE (conversation_id, trigger_id)
);

CREATE TABLE IF NOT EXISTS candidates (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	signature  TEXT NOT NULL,
	project    TEXT NOT NULL DEFAULT '',
	file_type  TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	confidence REAL NOT NULL,
	updated_at TEXT NOT NULL,
	data       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_signature ON candidates (signature, project, file_type);
CREATE INDEX IF NOT EXISTS idx_candidates_state ON candidates (state);

CREATE TABLE IF NOT EXISTS runs (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status      TEXT NOT NULL,
	summary     TEXT NOT NULL
);
`

// Bound on the number of parameters per IN clause.
const maxInParams = 500

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps transactions serialized and makes :memory: usable.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	return fn(&sqlTx{tx: tx})
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) PutEvidence(ctx context.Context, ev evidence.Evidence) (bool, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal evidence: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO evidence (id, conversation_id, trigger_id, project, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		ev.ID, ev.ConversationID, ev.TriggerID, ev.Project, ev.Timestamp.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return false, fmt.Errorf("insert evidence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert evidence: %w", err)
	}
	return n == 1, nil
}

func (t *sqlTx) Evidence(ctx context.Context, ids []string) ([]evidence.Evidence, error) {
	found := make(map[string]evidence.Evidence, len(ids))
	for start := 0; start < len(ids); start += maxInParams {
		chunk := ids[start:min(start+maxInParams, len(ids))]
		rows, err := t.tx.QueryContext(ctx,
			`SELECT data FROM evidence WHERE id IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("query evidence: %w", err)
		}
		err = scanJSON(rows, func(ev evidence.Evidence) { found[ev.ID] = ev })
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
	}

	out := make([]evidence.Evidence, 0, len(ids))
	for _, id := range ids {
		ev, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("evidence %s: %w", id, ErrNotFound)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (t *sqlTx) CountEvidence(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count evidence: %w", err)
	}
	return n, nil
}

func (t *sqlTx) Candidates(ctx context.Context, f candidate.Filter) ([]candidate.Candidate, error) {
	var where []string
	var args []any
	if f.Signature != "" {
		where = append(where, "signature = ?")
		args = append(args, f.Signature)
	}
	if f.Scope != nil {
		where = append(where, "project = ?", "file_type = ?")
		args = append(args, f.Scope.Project, f.Scope.FileType)
	}
	if len(f.States) > 0 {
		where = append(where, "state IN ("+placeholders(len(f.States))+")")
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}

	query := `SELECT data FROM candidates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	var out []candidate.Candidate
	err = scanJSON(rows, func(c candidate.Candidate) {
		if f.Match(c) {
			out = append(out, c)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	return out, nil
}

func (t *sqlTx) Candidate(ctx context.Context, id string) (candidate.Candidate, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM candidates WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return candidate.Candidate{}, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return candidate.Candidate{}, fmt.Errorf("get candidate %s: %w", id, err)
	}
	var c candidate.Candidate
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return candidate.Candidate{}, fmt.Errorf("unmarshal candidate %s: %w", id, err)
	}
	return c, nil
}

func (t *sqlTx) PutCandidate(ctx context.Context, c candidate.Candidate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO candidates (id, signature, project, file_type, state, confidence, updated_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			signature = excluded.signature,
			project = excluded.project,
			file_type = excluded.file_type,
			state = excluded.state,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at,
			data = excluded.data`,
		c.ID, c.Signature, c.Scope.Project, c.Scope.FileType, string(c.State), c.Confidence,
		time.Now().UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.ID, err)
	}
	return nil
}

func (t *sqlTx) PutRun(ctx context.Context, r Run) error {
	summary := string(r.Summary)
	if summary == "" {
		summary = "{}"
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, status, summary) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano), r.Status, summary,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (t *sqlTx) LastRun(ctx context.Context) (Run, error) {
	var r Run
	var started, finished, summary string
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY seq DESC LIMIT 1`,
	).Scan(&r.ID, &started, &finished, &r.Status, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get last run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	r.Summary = json.RawMessage(summary)
	return r, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func scanJSON[T any](rows *sql.Rows, fn func(T)) error {
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return err
		}
		fn(v)
	}
	return rows.Err()
}
