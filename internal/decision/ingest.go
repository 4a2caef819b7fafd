package decision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/evidence"
)

// ProcessedDir is the subdirectory settled artifacts are moved into.
const ProcessedDir = "processed"

// Ingestor reads review artifacts from a directory.
type Ingestor struct {
	dir     string
	archive bool
}

// NewIngestor creates an Ingestor for dir. With archive set, Archive moves
// settled artifacts into dir/processed.
func NewIngestor(dir string, archive bool) *Ingestor {
	return &Ingestor{dir: dir, archive: archive}
}

// Dir returns the artifact directory.
func (in *Ingestor) Dir() string { return in.dir }

// Ingest parses every *.md file in the directory, in name order. A missing
// directory yields no results. Candidates are never touched here.
func (in *Ingestor) Ingest(ctx context.Context) ([]ParseResult, error) {
	paths, err := filepath.Glob(filepath.Join(in.dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("listing review artifacts: %w", err)
	}
	sort.Strings(paths)

	results := make([]ParseResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func parseFile(path string) (ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseResult{}, fmt.Errorf("opening review artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ParseResult{}, fmt.Errorf("stat review artifact: %w", err)
	}
	return Parse(f, path, info.ModTime().UTC())
}

// Archive moves settled artifacts into the processed directory. It is a
// no-op when archiving is disabled.
func (in *Ingestor) Archive(results []ParseResult) ([]string, error) {
	if !in.archive {
		return nil, nil
	}
	var moved []string
	for _, res := range results {
		if !res.Settled() || len(res.Decisions) == 0 {
			continue
		}
		dest := filepath.Join(in.dir, ProcessedDir, filepath.Base(res.Source))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return moved, fmt.Errorf("creating processed dir: %w", err)
		}
		if err := os.Rename(res.Source, dest); err != nil {
			return moved, fmt.Errorf("archiving %s: %w", res.Source, err)
		}
		moved = append(moved, dest)
	}
	return moved, nil
}

// Export renders an artifact for the pending candidates into the directory.
// It returns an empty path when nothing is pending.
func (in *Ingestor) Export(cands []candidate.Candidate, evs []evidence.Evidence, now time.Time) (string, error) {
	var buf bytes.Buffer
	n, err := Render(&buf, cands, evs, now)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating review dir: %w", err)
	}

	path := filepath.Join(in.dir, "review-"+now.UTC().Format("20060102-150405")+".md")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing review artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("renaming review artifact: %w", err)
	}
	return path, nil
}
