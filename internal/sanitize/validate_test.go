package sanitize

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		root    string
		wantErr error
	}{
		{"empty", "", "", ErrEmptyPath},
		{"traversal", "/a/../etc/passwd", "", ErrPathTraversal},
		{"plain absolute", "/src/app/CLAUDE.md", "", nil},
		{"inside root", filepath.Join(root, "CLAUDE.md"), root, nil},
		{"outside root", "/elsewhere/CLAUDE.md", root, ErrPathTraversal},
		{"dots in name are fine", "/src/app/..hidden", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePath(tt.path, tt.root)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
		})
	}
}

func TestValidateRelative(t *testing.T) {
	assert.NoError(t, ValidateRelative("CLAUDE.md"))
	assert.NoError(t, ValidateRelative(".claude/rules"))
	assert.ErrorIs(t, ValidateRelative(""), ErrEmptyPath)
	assert.ErrorIs(t, ValidateRelative("/etc"), ErrAbsolutePath)
	assert.ErrorIs(t, ValidateRelative("../outside"), ErrPathTraversal)
}

func TestValidateGlobPattern(t *testing.T) {
	tests := []struct {
		pattern string
		ok      bool
	}{
		{"**/*.py", true},
		{"src/**/*.{ts,tsx}", true},
		{"*.go", true},
		{"", false},
		{"$(rm -rf /)", false},
		{"../**/*.py", false},
		{"[", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := ValidateGlobPattern(tt.pattern)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPattern)
			}
		})
	}
}
