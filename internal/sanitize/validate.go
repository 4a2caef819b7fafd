// Package sanitize validates file system paths and glob patterns that end up
// in written rule documents.
package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrAbsolutePath indicates an absolute path was provided where relative was expected.
	ErrAbsolutePath = errors.New("absolute path not allowed")

	// ErrInvalidPattern indicates a glob pattern is dangerous or malformed.
	ErrInvalidPattern = errors.New("invalid or dangerous pattern")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")
)

// dangerousPatternChars are characters with shell or markdown meaning that
// never belong in a rules-file glob.
var dangerousPatternChars = regexp.MustCompile(`[;\|\$\x60\\<>&\(\)]|\.{3,}|\*{3,}`)

// ValidatePath cleans path, resolves it to an absolute path and rejects
// traversal. With allowedRoot set the result must stay inside it.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if hasDotDot(path) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if allowedRoot != "" {
		absRoot, err := filepath.Abs(allowedRoot)
		if err != nil {
			return "", fmt.Errorf("failed to resolve allowed root: %w", err)
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err != nil || hasDotDot(rel) {
			return "", fmt.Errorf("%w: %q escapes %q", ErrPathTraversal, path, allowedRoot)
		}
	}
	return absPath, nil
}

// ValidateRelative checks a path that is joined onto a project root, such as
// the project document name or the rules directory.
func ValidateRelative(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", ErrAbsolutePath, path)
	}
	if hasDotDot(path) {
		return fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}
	return nil
}

// ValidateGlobPattern checks a glob pattern for dangerous constructs.
func ValidateGlobPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if dangerousPatternChars.MatchString(pattern) {
		return fmt.Errorf("%w: %q contains dangerous characters", ErrInvalidPattern, pattern)
	}
	if hasDotDot(pattern) {
		return fmt.Errorf("%w: %q contains path traversal", ErrInvalidPattern, pattern)
	}
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}

func hasDotDot(p string) bool {
	for _, part := range strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return true
		}
	}
	return false
}
