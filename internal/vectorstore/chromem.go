package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("codectx.vectorstore.chromem")

// chromemBatchCeiling is the per-call insert ceiling for the embedded store.
const chromemBatchCeiling = 100

// Reserved metadata keys used to round-trip Document fields.
const (
	metaRelativePath  = "relative_path"
	metaStartLine     = "start_line"
	metaEndLine       = "end_line"
	metaFileExtension = "file_extension"
)

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, persistence to gob files.
// It is the default backend and requires no setup.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandHomePath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// expandHomePath expands a leading ~ to the user's home directory.
func expandHomePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")), nil
	}
	return path, nil
}

// noEmbeddingFunc guards against chromem computing embeddings itself; all
// vectors are supplied by the caller.
func noEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("embedding must be precomputed")
}

// CreateCollection creates a collection. Vectors carry their own dimension,
// so the dimension parameter is only validated, not stored.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	if _, err := s.db.GetOrCreateCollection(name, nil, noEmbeddingFunc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// DropCollection deletes a collection and all its vectors.
func (s *ChromemStore) DropCollection(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DropCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// HasCollection reports whether a collection exists.
func (s *ChromemStore) HasCollection(ctx context.Context, name string) (bool, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.HasCollection")
	defer span.End()

	return s.db.GetCollection(name, noEmbeddingFunc) != nil, nil
}

// ListCollections returns all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListCollections")
	defer span.End()

	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names, nil
}

// Insert stores documents in fixed-size chunks, aborting on first failure.
func (s *ChromemStore) Insert(ctx context.Context, collection string, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	col := s.db.GetCollection(collection, noEmbeddingFunc)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	err := submitChunks(docs, chromemBatchCeiling, func(chunk []Document) error {
		chromemDocs := make([]chromem.Document, len(chunk))
		for i, doc := range chunk {
			chromemDocs[i] = chromem.Document{
				ID:        doc.ID,
				Content:   doc.Content,
				Metadata:  chunkMetadata(doc),
				Embedding: doc.Vector,
			}
		}
		// Concurrency of 1: embeddings are already present.
		return col.AddDocuments(ctx, chromemDocs, 1)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	s.logger.Debug("inserted documents into chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// chunkMetadata flattens Document fields into chromem string metadata.
func chunkMetadata(doc Document) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[metaRelativePath] = doc.RelativePath
	meta[metaStartLine] = strconv.Itoa(doc.StartLine)
	meta[metaEndLine] = strconv.Itoa(doc.EndLine)
	meta[metaFileExtension] = doc.FileExtension
	return meta
}

// documentFromMetadata rebuilds a Document from id, content, and metadata.
func documentFromMetadata(id, content string, meta map[string]string) Document {
	doc := Document{
		ID:            id,
		Content:       content,
		RelativePath:  meta[metaRelativePath],
		FileExtension: meta[metaFileExtension],
	}
	doc.StartLine, _ = strconv.Atoi(meta[metaStartLine])
	doc.EndLine, _ = strconv.Atoi(meta[metaEndLine])

	extra := make(map[string]string)
	for k, v := range meta {
		switch k {
		case metaRelativePath, metaStartLine, metaEndLine, metaFileExtension:
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		doc.Metadata = extra
	}
	return doc
}

// Search returns up to topK nearest neighbors above threshold.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	col := s.db.GetCollection(collection, noEmbeddingFunc)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	// chromem requires nResults <= document count.
	k := topK
	if count := col.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		searchResults = append(searchResults, SearchResult{
			Document: documentFromMetadata(r.ID, r.Content, r.Metadata),
			Score:    r.Similarity,
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	return searchResults, nil
}

// HybridSearch widens the vector search, then fuses scores with Rank.
func (s *ChromemStore) HybridSearch(ctx context.Context, collection string, vector []float32, query string, topK int, threshold float32) ([]SearchResult, error) {
	candidates, err := s.Search(ctx, collection, vector, topK*hybridOverfetch, threshold)
	if err != nil {
		return nil, err
	}
	return Rank(candidates, query, topK), nil
}

// DeleteByID deletes documents by their IDs.
func (s *ChromemStore) DeleteByID(ctx context.Context, collection string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	col := s.db.GetCollection(collection, noEmbeddingFunc)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}
	return nil
}

// DeleteByPath deletes all chunks of a file via metadata filtering.
func (s *ChromemStore) DeleteByPath(ctx context.Context, collection string, relativePath string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteByPath")
	defer span.End()
	span.SetAttributes(attribute.String("relative_path", relativePath))

	col := s.db.GetCollection(collection, noEmbeddingFunc)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	if err := col.Delete(ctx, map[string]string{metaRelativePath: relativePath}, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}
	return nil
}

// Close is a no-op; chromem persists synchronously.
func (s *ChromemStore) Close() error {
	return nil
}
