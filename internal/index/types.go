package index

import "time"

// IndexResult reports the outcome of an indexing run.
type IndexResult struct {
	// Path is the cleaned absolute codebase path.
	Path string `json:"path"`
	// Collection is the vector store collection backing this codebase.
	Collection string `json:"collection"`
	// FilesScanned counts files that passed the exclusion filters.
	FilesScanned int `json:"files_scanned"`
	// FilesIndexed counts files that were added or re-embedded.
	FilesIndexed int `json:"files_indexed"`
	// FilesRemoved counts files whose chunks were deleted.
	FilesRemoved int `json:"files_removed"`
	// ChunksIndexed counts embedded chunks written to the store.
	ChunksIndexed int `json:"chunks_indexed"`
	// IndexedAt is when the run finished.
	IndexedAt time.Time `json:"indexed_at"`
}

// State describes where an indexing run is in its lifecycle.
type State string

const (
	StateIndexing State = "indexing"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// Status is the progress of one codebase, safe to read while a run is
// in flight.
type Status struct {
	Path          string    `json:"path"`
	Collection    string    `json:"collection"`
	State         State     `json:"state"`
	FilesIndexed  int       `json:"files_indexed"`
	ChunksIndexed int       `json:"chunks_indexed"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// SearchOptions tunes a search request.
type SearchOptions struct {
	// Limit caps the number of results. 0 uses the default.
	Limit int
	// Extensions restricts results to files with these extensions
	// (with or without the leading dot). Empty means no restriction.
	Extensions []string
}
