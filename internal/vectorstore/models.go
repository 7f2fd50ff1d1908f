package vectorstore

// Document is a chunk of source code stored in the vector store.
//
// Fields are immutable once retrieved from a backend; ranking passes copy
// result records instead of mutating shared documents.
type Document struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the chunk text.
	Content string

	// Vector is the embedding of Content.
	Vector []float32

	// RelativePath is the file path relative to the codebase root.
	RelativePath string

	// StartLine and EndLine are the 1-based line bounds of the chunk.
	StartLine int
	EndLine   int

	// FileExtension is the source file extension without the leading dot.
	FileExtension string

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]string
}

// SearchResult pairs a document with its relevance score.
//
// Score is the only field a ranking pass may overwrite; it holds the raw
// vector similarity after Search and the combined score after hybrid fusion.
type SearchResult struct {
	Document Document
	Score    float32
}
