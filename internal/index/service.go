// Package index walks a codebase, chunks its files, embeds the chunks,
// and keeps the vector store in sync with the filesystem.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/config"
	"github.com/fyrsmithlabs/codectx/internal/embeddings"
	"github.com/fyrsmithlabs/codectx/internal/ignore"
	"github.com/fyrsmithlabs/codectx/internal/vectorstore"
)

var tracer = otel.Tracer("codectx.index")

var (
	// ErrNotIndexed indicates a search or clear against a codebase that
	// has no collection yet.
	ErrNotIndexed = errors.New("codebase is not indexed")

	// ErrInvalidPath indicates the codebase path is missing or not a
	// directory.
	ErrInvalidPath = errors.New("invalid codebase path")
)

const (
	// embedBatchSize caps chunks per embedding round trip.
	embedBatchSize = 64

	// defaultSearchLimit applies when the caller does not set one.
	defaultSearchLimit = 10
)

// Service orchestrates the indexing pipeline.
type Service struct {
	store     vectorstore.Store
	embedder  embeddings.Provider
	snapshots *SnapshotStore
	chunker   *Chunker
	cfg       config.IndexConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	statuses map[string]*Status
}

// NewService wires the pipeline together.
func NewService(store vectorstore.Store, embedder embeddings.Provider, snapshots *SnapshotStore, cfg config.IndexConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		snapshots: snapshots,
		chunker:   NewChunker(cfg.ChunkLines, cfg.ChunkOverlap),
		cfg:       cfg,
		logger:    logger,
		statuses:  make(map[string]*Status),
	}
}

// IndexCodebase scans the codebase at path and brings its collection up
// to date. Only files added or changed since the last snapshot are
// re-embedded; force discards the snapshot and rebuilds the collection.
func (s *Service) IndexCodebase(ctx context.Context, path string, force bool) (*IndexResult, error) {
	ctx, span := tracer.Start(ctx, "index.IndexCodebase")
	defer span.End()

	root, err := validateRoot(path)
	if err != nil {
		return nil, err
	}
	collection, err := CollectionName(root)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("path", root),
		attribute.String("collection", collection),
	)

	s.setStatus(root, &Status{
		Path:       root,
		Collection: collection,
		State:      StateIndexing,
		StartedAt:  time.Now(),
	})

	result, err := s.indexCodebase(ctx, root, collection, force)
	if err != nil {
		s.updateStatus(root, func(st *Status) {
			st.State = StateFailed
			st.Error = err.Error()
			st.CompletedAt = time.Now()
		})
		span.RecordError(err)
		return nil, err
	}

	s.updateStatus(root, func(st *Status) {
		st.State = StateReady
		st.FilesIndexed = result.FilesIndexed
		st.ChunksIndexed = result.ChunksIndexed
		st.CompletedAt = time.Now()
	})
	return result, nil
}

func (s *Service) indexCodebase(ctx context.Context, root, collection string, force bool) (*IndexResult, error) {
	if force {
		exists, err := s.store.HasCollection(ctx, collection)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := s.store.DropCollection(ctx, collection); err != nil {
				return nil, err
			}
		}
		if err := s.snapshots.Delete(collection); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateCollection(ctx, collection, s.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	previous, err := s.snapshots.Load(collection)
	if err != nil {
		return nil, err
	}

	current, err := s.scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scanning codebase: %w", err)
	}

	added, changed, removed := diff(previous.Files, current)

	// Stale chunks from changed files must go before re-insertion, and
	// removed files lose theirs entirely.
	for _, rel := range append(append([]string{}, changed...), removed...) {
		if err := s.store.DeleteByPath(ctx, collection, rel); err != nil {
			return nil, fmt.Errorf("deleting chunks for %s: %w", rel, err)
		}
	}

	toIndex := append(added, changed...)
	sort.Strings(toIndex)

	chunksIndexed := 0
	for _, rel := range toIndex {
		content, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		n, err := s.indexFile(ctx, collection, rel, string(content))
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", rel, err)
		}
		chunksIndexed += n
		s.updateStatus(root, func(st *Status) {
			st.FilesIndexed++
			st.ChunksIndexed += n
		})
	}

	if err := s.snapshots.Save(collection, &Snapshot{Path: root, Files: current}); err != nil {
		return nil, err
	}

	s.logger.Info("codebase indexed",
		zap.String("path", root),
		zap.String("collection", collection),
		zap.Int("files_scanned", len(current)),
		zap.Int("files_indexed", len(toIndex)),
		zap.Int("files_removed", len(removed)),
		zap.Int("chunks_indexed", chunksIndexed),
	)

	return &IndexResult{
		Path:          root,
		Collection:    collection,
		FilesScanned:  len(current),
		FilesIndexed:  len(toIndex),
		FilesRemoved:  len(removed),
		ChunksIndexed: chunksIndexed,
		IndexedAt:     time.Now(),
	}, nil
}

// scan walks the tree and returns relative path -> content hash for
// every indexable file.
func (s *Service) scan(ctx context.Context, root string) (map[string]string, error) {
	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return nil, err
	}

	maxSize := s.cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = 1024 * 1024
	}

	files := make(map[string]string)
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if matcher.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		// Binary files are skipped; embedding backends require UTF-8.
		if !utf8.Valid(content) {
			return nil
		}

		sum := sha256.Sum256(content)
		files[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// indexFile chunks, embeds, and inserts one file, returning the chunk
// count.
func (s *Service) indexFile(ctx context.Context, collection, rel, content string) (int, error) {
	chunks := s.chunker.Split(rel, content)
	if len(chunks) == 0 {
		return 0, nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, err
		}

		docs := make([]vectorstore.Document, len(batch))
		for i, ch := range batch {
			docs[i] = vectorstore.Document{
				ID:            ch.ID,
				Content:       ch.Content,
				Vector:        vectors[i],
				RelativePath:  ch.RelativePath,
				StartLine:     ch.StartLine,
				EndLine:       ch.EndLine,
				FileExtension: strings.TrimPrefix(filepath.Ext(ch.RelativePath), "."),
			}
		}
		if err := s.store.Insert(ctx, collection, docs); err != nil {
			return 0, err
		}
	}
	return len(chunks), nil
}

// Search embeds the query and runs a hybrid search over the codebase's
// collection.
func (s *Service) Search(ctx context.Context, path, query string, opts SearchOptions) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "index.Search")
	defer span.End()

	root, err := validateRoot(path)
	if err != nil {
		return nil, err
	}
	collection, err := CollectionName(root)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, root)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.store.HybridSearch(ctx, collection, vector, query, limit, 0)
	if err != nil {
		return nil, err
	}
	return filterExtensions(results, opts.Extensions), nil
}

// filterExtensions keeps results whose file extension is listed.
// Extensions compare without the leading dot.
func filterExtensions(results []vectorstore.SearchResult, extensions []string) []vectorstore.SearchResult {
	if len(extensions) == 0 {
		return results
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.TrimPrefix(strings.ToLower(ext), ".")] = true
	}

	filtered := make([]vectorstore.SearchResult, 0, len(results))
	for _, r := range results {
		if allowed[strings.ToLower(r.Document.FileExtension)] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ClearIndex drops the codebase's collection and snapshot.
func (s *Service) ClearIndex(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "index.ClearIndex")
	defer span.End()

	root, err := validateRoot(path)
	if err != nil {
		return err
	}
	collection, err := CollectionName(root)
	if err != nil {
		return err
	}

	exists, err := s.store.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotIndexed, root)
	}

	if err := s.store.DropCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.snapshots.Delete(collection); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.statuses, root)
	s.mu.Unlock()

	s.logger.Info("index cleared", zap.String("path", root), zap.String("collection", collection))
	return nil
}

// Status returns the status for one codebase, or false if it was never
// indexed this session.
func (s *Service) Status(path string) (Status, bool) {
	root, err := validateRoot(path)
	if err != nil {
		return Status{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[root]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Statuses returns all known codebase statuses, ordered by path.
func (s *Service) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Service) setStatus(root string, st *Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[root] = st
}

func (s *Service) updateStatus(root string, fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[root]; ok {
		fn(st)
	}
}

// validateRoot cleans the path and requires an existing directory.
func validateRoot(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, abs)
	}
	return abs, nil
}
