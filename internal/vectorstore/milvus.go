package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// milvusTracer for OpenTelemetry instrumentation.
var milvusTracer = otel.Tracer("codectx.vectorstore.milvus")

// milvusBatchCeiling is the per-call insert ceiling for Milvus.
const milvusBatchCeiling = 1000

// Milvus schema field names.
const (
	milvusFieldID        = "id"
	milvusFieldContent   = "content"
	milvusFieldPath      = "relative_path"
	milvusFieldStartLine = "start_line"
	milvusFieldEndLine   = "end_line"
	milvusFieldExtension = "file_extension"
	milvusFieldVector    = "vector"
)

var milvusOutputFields = []string{
	milvusFieldID,
	milvusFieldContent,
	milvusFieldPath,
	milvusFieldStartLine,
	milvusFieldEndLine,
	milvusFieldExtension,
}

// MilvusConfig holds configuration for the Milvus gRPC client.
type MilvusConfig struct {
	// Address is the Milvus endpoint, host:port.
	Address string

	// Token authenticates against Milvus or Zilliz Cloud. Optional.
	Token string

	// Database selects a Milvus database. Optional.
	Database string
}

// Validate validates the configuration.
func (c MilvusConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address required", ErrInvalidConfig)
	}
	return nil
}

// MilvusStore implements Store backed by a Milvus server.
//
// Collections use a varchar primary key, scalar metadata fields, and a
// float-vector field with an AUTOINDEX cosine index. Collections are loaded
// at creation so searches work immediately.
type MilvusStore struct {
	client client.Client
	config MilvusConfig
	logger *zap.Logger
}

// NewMilvusStore connects to Milvus and returns a ready-to-use store.
func NewMilvusStore(ctx context.Context, config MilvusConfig, logger *zap.Logger) (*MilvusStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	c, err := client.NewClient(ctx, client.Config{
		Address: config.Address,
		APIKey:  config.Token,
		DBName:  config.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to milvus at %s: %v", ErrBackendRequest, config.Address, err)
	}

	logger.Info("milvus store initialized",
		zap.String("address", config.Address),
		zap.String("database", config.Database),
	)

	return &MilvusStore{
		client: c,
		config: config,
		logger: logger,
	}, nil
}

// CreateCollection creates the chunk collection with a cosine AUTOINDEX and
// loads it for search. Creating an existing collection is a no-op.
func (s *MilvusStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.CreateCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("dimension", dimension),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: checking collection: %v", ErrBackendRequest, err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("codectx code chunks").
		WithField(entity.NewField().
			WithName(milvusFieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(128).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(milvusFieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(milvusFieldPath).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(1024)).
		WithField(entity.NewField().
			WithName(milvusFieldStartLine).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(milvusFieldEndLine).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(milvusFieldExtension).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(32)).
		WithField(entity.NewField().
			WithName(milvusFieldVector).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension)))

	if err := s.client.CreateCollection(ctx, schema, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: creating collection: %v", ErrBackendRequest, err)
	}

	idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if err := s.client.CreateIndex(ctx, name, milvusFieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: creating index: %v", ErrBackendRequest, err)
	}

	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: loading collection: %v", ErrBackendRequest, err)
	}
	return nil
}

// DropCollection deletes a collection and all its vectors.
func (s *MilvusStore) DropCollection(ctx context.Context, name string) error {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.DropCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := s.client.DropCollection(ctx, name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: dropping collection: %v", ErrBackendRequest, err)
	}
	return nil
}

// HasCollection reports whether a collection exists.
func (s *MilvusStore) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.HasCollection")
	defer span.End()

	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("%w: checking collection: %v", ErrBackendRequest, err)
	}
	return exists, nil
}

// ListCollections returns all collection names.
func (s *MilvusStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.ListCollections")
	defer span.End()

	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: listing collections: %v", ErrBackendRequest, err)
	}
	names := make([]string, 0, len(collections))
	for _, c := range collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Insert stores documents in fixed-size chunks, aborting on first failure,
// then flushes once so the data is sealed.
func (s *MilvusStore) Insert(ctx context.Context, collection string, docs []Document) error {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	dim := len(docs[0].Vector)

	err := submitChunks(docs, milvusBatchCeiling, func(chunk []Document) error {
		ids := make([]string, len(chunk))
		contents := make([]string, len(chunk))
		paths := make([]string, len(chunk))
		startLines := make([]int64, len(chunk))
		endLines := make([]int64, len(chunk))
		extensions := make([]string, len(chunk))
		vectors := make([][]float32, len(chunk))

		for i, doc := range chunk {
			ids[i] = doc.ID
			contents[i] = doc.Content
			paths[i] = doc.RelativePath
			startLines[i] = int64(doc.StartLine)
			endLines[i] = int64(doc.EndLine)
			extensions[i] = doc.FileExtension
			vectors[i] = doc.Vector
		}

		_, err := s.client.Insert(ctx, collection, "",
			entity.NewColumnVarChar(milvusFieldID, ids),
			entity.NewColumnVarChar(milvusFieldContent, contents),
			entity.NewColumnVarChar(milvusFieldPath, paths),
			entity.NewColumnInt64(milvusFieldStartLine, startLines),
			entity.NewColumnInt64(milvusFieldEndLine, endLines),
			entity.NewColumnVarChar(milvusFieldExtension, extensions),
			entity.NewColumnFloatVector(milvusFieldVector, dim, vectors),
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	if err := s.client.Flush(ctx, collection, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: flushing collection: %v", ErrBackendRequest, err)
	}

	s.logger.Debug("inserted documents into milvus",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Search returns up to topK nearest neighbors above threshold.
func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]SearchResult, error) {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("building search params: %w", err)
	}

	searchResults, err := s.client.Search(ctx, collection, nil, "", milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusFieldVector,
		entity.COSINE, topK, sp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	var results []SearchResult
	for _, sr := range searchResults {
		for i := 0; i < sr.ResultCount; i++ {
			score := sr.Scores[i]
			if score < threshold {
				continue
			}
			doc, err := milvusDocument(sr.Fields, i)
			if err != nil {
				return nil, err
			}
			results = append(results, SearchResult{Document: doc, Score: score})
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

// milvusDocument rebuilds a Document from the i-th row of a result set.
func milvusDocument(fields client.ResultSet, i int) (Document, error) {
	var doc Document
	var err error

	get := func(name string) string {
		if err != nil {
			return ""
		}
		col := fields.GetColumn(name)
		if col == nil {
			err = fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
			return ""
		}
		v, gerr := col.GetAsString(i)
		if gerr != nil {
			err = fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, name, gerr)
			return ""
		}
		return v
	}
	getInt := func(name string) int {
		if err != nil {
			return 0
		}
		col := fields.GetColumn(name)
		if col == nil {
			err = fmt.Errorf("%w: missing field %q", ErrMalformedResponse, name)
			return 0
		}
		v, gerr := col.GetAsInt64(i)
		if gerr != nil {
			err = fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, name, gerr)
			return 0
		}
		return int(v)
	}

	doc.ID = get(milvusFieldID)
	doc.Content = get(milvusFieldContent)
	doc.RelativePath = get(milvusFieldPath)
	doc.StartLine = getInt(milvusFieldStartLine)
	doc.EndLine = getInt(milvusFieldEndLine)
	doc.FileExtension = get(milvusFieldExtension)
	return doc, err
}

// HybridSearch widens the vector search, then fuses scores with Rank.
func (s *MilvusStore) HybridSearch(ctx context.Context, collection string, vector []float32, query string, topK int, threshold float32) ([]SearchResult, error) {
	candidates, err := s.Search(ctx, collection, vector, topK*hybridOverfetch, threshold)
	if err != nil {
		return nil, err
	}
	return Rank(candidates, query, topK), nil
}

// DeleteByID deletes documents by primary key.
func (s *MilvusStore) DeleteByID(ctx context.Context, collection string, ids []string) error {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = milvusQuote(id)
	}
	expr := fmt.Sprintf("%s in [%s]", milvusFieldID, strings.Join(quoted, ", "))

	if err := s.client.Delete(ctx, collection, "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}
	return nil
}

// DeleteByPath deletes all chunks of a file via a scalar filter expression.
func (s *MilvusStore) DeleteByPath(ctx context.Context, collection string, relativePath string) error {
	ctx, span := milvusTracer.Start(ctx, "MilvusStore.DeleteByPath")
	defer span.End()
	span.SetAttributes(attribute.String("relative_path", relativePath))

	expr := fmt.Sprintf("%s == %s", milvusFieldPath, milvusQuote(relativePath))
	if err := s.client.Delete(ctx, collection, "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}
	return nil
}

// milvusQuote renders a string literal for a Milvus filter expression.
func milvusQuote(s string) string {
	return strconv.Quote(s)
}

// Close closes the Milvus gRPC connection.
func (s *MilvusStore) Close() error {
	return s.client.Close()
}
