// Package ignore provides gitignore-style exclusion for codebase indexing.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreFiles are read from the codebase root, in order. Patterns from
// .codectxignore extend .gitignore rather than replacing it.
var ignoreFiles = []string{".gitignore", ".codectxignore"}

// DefaultExcludes always apply, whether or not ignore files exist.
var DefaultExcludes = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	".idea",
	".vscode",
	"*.min.js",
	"*.lock",
}

// Matcher reports whether a relative path is excluded from indexing.
type Matcher struct {
	patterns []string
}

// NewMatcher reads ignore files from root and combines their patterns
// with DefaultExcludes. Missing ignore files are skipped.
func NewMatcher(root string) (*Matcher, error) {
	patterns := make([]string, 0, len(DefaultExcludes))
	patterns = append(patterns, DefaultExcludes...)

	for _, name := range ignoreFiles {
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
	}

	return &Matcher{patterns: deduplicate(patterns)}, nil
}

// Match reports whether relPath (slash-separated, relative to the
// codebase root) matches any exclusion pattern. Directory patterns
// exclude everything beneath them.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	basename := filepath.Base(relPath)

	for _, pattern := range m.patterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		// A bare directory name matches any path segment.
		if !strings.ContainsAny(pattern, "/*?[") {
			for _, segment := range strings.Split(relPath, "/") {
				if segment == pattern {
					return true
				}
			}
		}
	}
	return false
}

// Patterns returns the active exclusion patterns.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// parseFile reads a single gitignore-style file.
func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine normalizes one ignore file line. Comments, blank lines, and
// negation patterns yield an empty string.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	// Negation patterns are not supported.
	if strings.HasPrefix(line, "!") {
		return ""
	}

	// Leading slash anchors to the root; matching is done on relative
	// paths so the slash is dropped.
	line = strings.TrimPrefix(line, "/")
	// Trailing slash marks a directory; bare names match path segments.
	line = strings.TrimSuffix(line, "/")
	return line
}

// deduplicate removes duplicates while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}
