// Package vectorstore defines the interface for vector storage operations
// and its backend implementations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrBackendRequest wraps upstream SDK failures (network, auth, quota).
	ErrBackendRequest = errors.New("vector store request failed")

	// ErrMalformedResponse indicates a backend response missing expected fields.
	ErrMalformedResponse = errors.New("malformed vector store response")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special chars, path separators, and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for vector storage operations.
//
// Backends operate on already-embedded documents; embedding is the caller's
// concern. The backend is selected once at startup from configuration, not
// per call.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default, no external service)
//   - MilvusStore: external Milvus server
//   - S3VectorsStore: AWS S3 Vectors
type Store interface {
	// CreateCollection creates a collection for vectors of the given
	// dimension. Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// DropCollection deletes a collection and all its vectors.
	DropCollection(ctx context.Context, name string) error

	// HasCollection reports whether a collection exists.
	HasCollection(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Insert stores documents with their vectors. Inputs are partitioned
	// into fixed-size chunks under the backend's per-call batch ceiling and
	// submitted sequentially; the operation aborts on the first chunk
	// failure with no rollback of previously submitted chunks.
	Insert(ctx context.Context, collection string, docs []Document) error

	// Search returns up to topK nearest neighbors of vector with
	// similarity score >= threshold, ordered by score descending.
	Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]SearchResult, error)

	// HybridSearch combines vector similarity with a lexical term-density
	// score over query (see Rank) and returns up to topK fused results.
	HybridSearch(ctx context.Context, collection string, vector []float32, query string, topK int, threshold float32) ([]SearchResult, error)

	// DeleteByID deletes documents by their IDs.
	DeleteByID(ctx context.Context, collection string, ids []string) error

	// DeleteByPath deletes all chunks of the file at relativePath.
	//
	// Backends without server-side filtered deletion (S3 Vectors) log a
	// warning and return nil with no effect; callers must not assume the
	// chunks were removed.
	DeleteByPath(ctx context.Context, collection string, relativePath string) error

	// Close releases backend resources.
	Close() error
}
