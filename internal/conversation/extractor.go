package conversation

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	filePathPattern = regexp.MustCompile("(?:^|[\\s\"'`(])([a-zA-Z0-9_\\-./~]+\\.[a-zA-Z0-9]+)(?:$|[\\s\"'`):,;.!?])")
	versionPattern  = regexp.MustCompile(`^v?\d+(\.\d+)+$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
)

// toolPathParams are tool input keys that carry a file path.
var toolPathParams = []string{"file_path", "notebook_path", "path"}

// FilePaths returns the distinct file paths mentioned in text, in order of
// first appearance.
func FilePaths(text string) []string {
	matches := filePathPattern.FindAllStringSubmatch(text, -1)
	paths := make([]string, 0, len(matches))
	seen := make(map[string]bool)

	for _, match := range matches {
		path := match[1]
		if isValidFilePath(path) && !seen[path] {
			paths = append(paths, path)
			seen[path] = true
		}
	}
	return paths
}

// Extension returns the lowercase extension of path including the dot, or ""
// when path has none.
func Extension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "." || !hasLetter.MatchString(ext) {
		return ""
	}
	return ext
}

// FileExtension picks the file type an utterance is about: tool-call paths
// first, then paths mentioned in its text.
func FileExtension(u Utterance) string {
	for _, p := range u.FilePaths {
		if ext := Extension(p); ext != "" {
			return ext
		}
	}
	for _, p := range FilePaths(u.Text) {
		if ext := Extension(p); ext != "" {
			return ext
		}
	}
	return ""
}

// isValidFilePath filters out URLs, versions and abbreviations that the path
// pattern also matches.
func isValidFilePath(path string) bool {
	if len(path) < 3 {
		return false
	}
	if strings.Contains(path, "://") || strings.HasPrefix(path, "www.") {
		return false
	}
	if versionPattern.MatchString(path) {
		return false
	}
	switch strings.ToLower(path) {
	case "e.g", "i.e", "etc", "e.g.", "i.e.", "etc.", "vs.":
		return false
	}

	ext := filepath.Ext(path)
	if len(ext) < 2 || len(ext) > 11 {
		return false
	}
	return hasLetter.MatchString(ext)
}
