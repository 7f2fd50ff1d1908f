package index

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// chunkNamespace seeds deterministic chunk IDs. Re-indexing the same
// path and line range always produces the same ID, so upserts replace
// rather than duplicate.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("codectx.chunks"))

// Chunk is a contiguous slice of a source file.
type Chunk struct {
	ID           string
	Content      string
	RelativePath string
	// StartLine and EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int
}

// Chunker splits file content into overlapping line windows.
type Chunker struct {
	lines   int
	overlap int
}

// NewChunker returns a line-based chunker. Non-positive lines falls back
// to 100, and overlap is clamped below lines.
func NewChunker(lines, overlap int) *Chunker {
	if lines <= 0 {
		lines = 100
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= lines {
		overlap = lines - 1
	}
	return &Chunker{lines: lines, overlap: overlap}
}

// Split chunks content into windows of c.lines lines advancing by
// c.lines-c.overlap. Empty content yields no chunks.
func (c *Chunker) Split(relPath, content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	// A trailing newline produces a phantom empty last line.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	step := c.lines - c.overlap
	var chunks []Chunk
	for start := 0; start < len(lines); start += step {
		end := start + c.lines
		if end > len(lines) {
			end = len(lines)
		}

		chunks = append(chunks, Chunk{
			ID:           chunkID(relPath, start+1, end),
			Content:      strings.Join(lines[start:end], "\n"),
			RelativePath: relPath,
			StartLine:    start + 1,
			EndLine:      end,
		})

		if end == len(lines) {
			break
		}
	}
	return chunks
}

// chunkID derives a stable UUID from the path and line range.
func chunkID(relPath string, startLine, endLine int) string {
	name := fmt.Sprintf("%s#%d-%d", relPath, startLine, endLine)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
