// Package rulewriter merges approved rules into managed regions of rule
// documents.
package rulewriter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/ruleminer/internal/candidate"
	"github.com/fyrsmithlabs/ruleminer/internal/sanitize"
)

// Config selects the target documents.
type Config struct {
	// GlobalDocument receives global and file-type-only rules.
	GlobalDocument string
	// ProjectDocument is joined onto the project root for project rules.
	ProjectDocument string
	// RulesDir, when set, switches project rules to one file per category
	// under <project>/<RulesDir>.
	RulesDir string
}

// Status is the outcome for one document.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// DocumentPlan is the set of regions to merge into one document.
type DocumentPlan struct {
	Path    string
	Regions []Region
	// Paths are front matter globs used when the document is created.
	Paths []string
}

// DocumentResult reports what happened to one document.
type DocumentResult struct {
	Path    string
	Status  Status
	Regions int
	Err     error
}

// Writer plans and writes rule documents.
type Writer struct {
	cfg Config
}

// New creates a Writer after checking the configured document names.
func New(cfg Config) (*Writer, error) {
	if cfg.GlobalDocument == "" {
		return nil, fmt.Errorf("global document: %w", sanitize.ErrEmptyPath)
	}
	if err := sanitize.ValidateRelative(cfg.ProjectDocument); err != nil {
		return nil, fmt.Errorf("project document: %w", err)
	}
	if cfg.RulesDir != "" {
		if err := sanitize.ValidateRelative(cfg.RulesDir); err != nil {
			return nil, fmt.Errorf("rules dir: %w", err)
		}
	}
	return &Writer{cfg: cfg}, nil
}

// Plan partitions approved candidates into documents and regions. Other
// states are ignored. The result is ordered by path and region key.
func (w *Writer) Plan(approved []candidate.Candidate) []DocumentPlan {
	type regionRef struct {
		path string
		key  string
	}
	regions := make(map[regionRef]*Region)
	rulesDirDocs := make(map[string]bool)

	for _, c := range approved {
		if c.State != candidate.StateApproved {
			continue
		}
		cat := c.Category
		if cat == "" {
			cat = candidate.Categorize(c.RuleText())
		}
		path := w.documentFor(c.Scope, cat)
		if w.cfg.RulesDir != "" && c.Scope.Project != "" {
			rulesDirDocs[path] = true
		}

		ref := regionRef{path: path, key: RegionKey(c.Scope, cat)}
		r, ok := regions[ref]
		if !ok {
			r = &Region{Key: ref.key, Heading: cat.Title(), FileType: c.Scope.FileType}
			if c.Scope.FileType != "" {
				r.Heading += " (*" + c.Scope.FileType + ")"
			}
			regions[ref] = r
		}
		r.Rules = append(r.Rules, c)
	}

	byPath := make(map[string]*DocumentPlan)
	for ref, r := range regions {
		sortRules(r.Rules)
		p, ok := byPath[ref.path]
		if !ok {
			p = &DocumentPlan{Path: ref.path}
			byPath[ref.path] = p
		}
		p.Regions = append(p.Regions, *r)
	}

	plans := make([]DocumentPlan, 0, len(byPath))
	for path, p := range byPath {
		sort.Slice(p.Regions, func(i, j int) bool { return p.Regions[i].Key < p.Regions[j].Key })
		if rulesDirDocs[path] {
			p.Paths = pathGlobs(p.Regions)
		}
		plans = append(plans, *p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Path < plans[j].Path })
	return plans
}

func (w *Writer) documentFor(scope candidate.Scope, cat candidate.Category) string {
	switch {
	case scope.Project == "":
		return w.cfg.GlobalDocument
	case w.cfg.RulesDir != "":
		return filepath.Join(scope.Project, w.cfg.RulesDir, string(cat)+".md")
	default:
		return filepath.Join(scope.Project, w.cfg.ProjectDocument)
	}
}

// pathGlobs returns front matter globs when every region is file-type
// scoped; a single unscoped region makes the file apply everywhere.
func pathGlobs(regions []Region) []string {
	var globs []string
	for _, r := range regions {
		if r.FileType == "" {
			return nil
		}
		globs = append(globs, "**/*"+r.FileType)
	}
	sort.Strings(globs)
	return globs
}

// Write merges each plan into its document. Failures are per document and
// never stop the remaining documents.
func (w *Writer) Write(ctx context.Context, plans []DocumentPlan) []DocumentResult {
	results := make([]DocumentResult, 0, len(plans))
	for _, p := range plans {
		res := DocumentResult{Path: p.Path, Regions: len(p.Regions)}
		if err := ctx.Err(); err != nil {
			res.Status, res.Err = StatusFailed, err
			results = append(results, res)
			continue
		}
		changed, err := w.writeDocument(p)
		switch {
		case err != nil:
			res.Status, res.Err = StatusFailed, err
		case changed:
			res.Status = StatusWritten
		default:
			res.Status = StatusUnchanged
		}
		results = append(results, res)
	}
	return results
}

func (w *Writer) writeDocument(p DocumentPlan) (bool, error) {
	path, err := sanitize.ValidatePath(p.Path, "")
	if err != nil {
		return false, fmt.Errorf("document %s: %w", p.Path, err)
	}

	current, err := os.ReadFile(path)
	created := errors.Is(err, fs.ErrNotExist)
	if err != nil && !created {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var prefix []byte
	if created && len(p.Paths) > 0 {
		prefix, err = frontMatter(p.Paths)
		if err != nil {
			return false, fmt.Errorf("document %s: %w", path, err)
		}
	}

	merged, err := Merge(current, p.Regions)
	if err != nil {
		return false, fmt.Errorf("document %s: %w", path, err)
	}
	merged = append(prefix, merged...)
	if !created && bytes.Equal(current, merged) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return true, writeAtomic(path, merged)
}

func frontMatter(globs []string) ([]byte, error) {
	for _, g := range globs {
		if err := sanitize.ValidateGlobPattern(g); err != nil {
			return nil, err
		}
	}
	body, err := yaml.Marshal(struct {
		Paths []string `yaml:"paths"`
	}{globs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	out := append([]byte("---\n"), body...)
	return append(out, "---\n\n"...), nil
}

// writeAtomic writes to a sibling temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
