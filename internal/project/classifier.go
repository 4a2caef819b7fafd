package project

import (
	"os"
	"path/filepath"
)

// Classifier labels a workspace, e.g. "go" or "python".
type Classifier interface {
	Classify(workspacePath string) string
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(workspacePath string) string

func (f ClassifierFunc) Classify(workspacePath string) string { return f(workspacePath) }

// Unknown is the label for workspaces no marker identifies.
const Unknown = "unknown"

type marker struct {
	file  string
	label string
}

var defaultMarkers = []marker{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"setup.py", "python"},
	{"package.json", "node"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Gemfile", "ruby"},
}

// MarkerClassifier labels a workspace by the first well-known build file
// found at its root.
type MarkerClassifier struct{}

func (MarkerClassifier) Classify(workspacePath string) string {
	if workspacePath == "" {
		return Unknown
	}
	for _, m := range defaultMarkers {
		if _, err := os.Stat(filepath.Join(workspacePath, m.file)); err == nil {
			return m.label
		}
	}
	return Unknown
}
