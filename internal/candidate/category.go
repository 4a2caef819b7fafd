package candidate

import "strings"

// Category is the document section a rule is written under.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryCodeStyle     Category = "code-style"
	CategoryWorkflow      Category = "workflow"
	CategoryCommunication Category = "communication"
)

// Title is the section heading for c.
func (c Category) Title() string {
	switch c {
	case CategoryCodeStyle:
		return "Code Style"
	case CategoryWorkflow:
		return "Workflow"
	case CategoryCommunication:
		return "Communication"
	}
	return "General"
}

// Checked in order; the first category with a matching keyword wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryWorkflow, []string{"commit", "git", "test", "build", "run", "deploy", "push", "branch", "install"}},
	{CategoryCommunication, []string{"concise", "verbose", "emoji", "format", "explain", "summary", "summarize", "apolog"}},
	{CategoryCodeStyle, []string{"indent", "style", "naming", "name", "pipe", "comment", "type", "import", "lint"}},
}

// Categorize picks a Category from keywords in rule text. A keyword matches
// the start of a word, so "commit" also matches "commits".
func Categorize(text string) Category {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return group.category
				}
			}
		}
	}
	return CategoryGeneral
}
