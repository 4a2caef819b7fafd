package project

import (
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
)

// Resolver resolves workspace paths to project keys. Results are cached for
// the lifetime of the resolver.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]string)}
}

// Resolve returns the root of the git worktree containing workspacePath, or
// the cleaned path itself when it is not inside a repository. An empty
// workspace resolves to "".
func (r *Resolver) Resolve(workspacePath string) string {
	if workspacePath == "" {
		return ""
	}
	clean := filepath.Clean(workspacePath)

	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.cache[clean]; ok {
		return key
	}

	key := clean
	if root := gitRoot(clean); root != "" {
		key = root
	}
	r.cache[clean] = key
	return key
}

func gitRoot(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ""
	}
	return filepath.Clean(wt.Filesystem.Root())
}
