package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIgnoreFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

func TestNewMatcher_NoIgnoreFiles(t *testing.T) {
	m, err := NewMatcher(t.TempDir())
	require.NoError(t, err)

	assert.True(t, m.Match("node_modules/react/index.js"))
	assert.True(t, m.Match(".git/HEAD"))
	assert.True(t, m.Match("static/app.min.js"))
	assert.False(t, m.Match("internal/server/handler.go"))
}

func TestNewMatcher_CombinesIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, root, ".gitignore", "*.log\n/coverage\n")
	writeIgnoreFile(t, root, ".codectxignore", "testdata/\n")

	m, err := NewMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.Match("server.log"))
	assert.True(t, m.Match("coverage"))
	assert.True(t, m.Match("pkg/parser/testdata/sample.json"))
	assert.False(t, m.Match("pkg/parser/parser.go"))
}

func TestNewMatcher_SkipsCommentsAndNegations(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, root, ".gitignore", "# build output\n\n*.tmp\n!keep.tmp\n")

	m, err := NewMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.Match("scratch.tmp"))
	// Negations are dropped, not honored.
	assert.True(t, m.Match("keep.tmp"))
	assert.False(t, m.Match("# build output"))
}

func TestMatch_DirectoryPatternMatchesSegments(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFile(t, root, ".gitignore", "generated\n")

	m, err := NewMatcher(root)
	require.NoError(t, err)

	assert.True(t, m.Match("generated/api.go"))
	assert.True(t, m.Match("internal/generated/api.go"))
	assert.False(t, m.Match("internal/generator/api.go"))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"# comment", ""},
		{"!negated", ""},
		{"*.log", "*.log"},
		{"/coverage", "coverage"},
		{"testdata/", "testdata"},
		{"build/output.bin  ", "build/output.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLine(tt.line), "line %q", tt.line)
	}
}
