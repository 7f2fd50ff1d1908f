package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/document"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// s3vectorsTracer for OpenTelemetry instrumentation.
var s3vectorsTracer = otel.Tracer("codectx.vectorstore.s3vectors")

// s3vectorsBatchCeiling is the hard PutVectors ceiling per call.
const s3vectorsBatchCeiling = 500

// S3VectorsConfig holds configuration for the AWS S3 Vectors store.
type S3VectorsConfig struct {
	// Bucket is the vector bucket name. The bucket must already exist.
	Bucket string

	// Region overrides the AWS region from the credential chain. Optional.
	Region string
}

// Validate validates the configuration.
func (c S3VectorsConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket required", ErrInvalidConfig)
	}
	return nil
}

// s3vectorsAPI is the subset of the S3 Vectors client used by the store.
// Narrowing the dependency keeps the store testable without AWS.
type s3vectorsAPI interface {
	CreateIndex(ctx context.Context, in *s3vectors.CreateIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.CreateIndexOutput, error)
	DeleteIndex(ctx context.Context, in *s3vectors.DeleteIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error)
	GetIndex(ctx context.Context, in *s3vectors.GetIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.GetIndexOutput, error)
	ListIndexes(ctx context.Context, in *s3vectors.ListIndexesInput, opts ...func(*s3vectors.Options)) (*s3vectors.ListIndexesOutput, error)
	PutVectors(ctx context.Context, in *s3vectors.PutVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.PutVectorsOutput, error)
	QueryVectors(ctx context.Context, in *s3vectors.QueryVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error)
	DeleteVectors(ctx context.Context, in *s3vectors.DeleteVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.DeleteVectorsOutput, error)
}

// S3VectorsStore implements Store backed by AWS S3 Vectors.
//
// Each collection maps to a vector index in the configured vector bucket.
// Indexes use cosine distance; query distances are converted to
// similarities as 1 - distance so scores align with the other backends.
type S3VectorsStore struct {
	client s3vectorsAPI
	config S3VectorsConfig
	logger *zap.Logger
}

// NewS3VectorsStore resolves AWS credentials via the default chain and
// returns a ready-to-use store.
func NewS3VectorsStore(ctx context.Context, config S3VectorsConfig, logger *zap.Logger) (*S3VectorsStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(config.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", ErrBackendRequest, err)
	}

	logger.Info("s3vectors store initialized",
		zap.String("bucket", config.Bucket),
		zap.String("region", awsCfg.Region),
	)

	return &S3VectorsStore{
		client: s3vectors.NewFromConfig(awsCfg),
		config: config,
		logger: logger,
	}, nil
}

// CreateCollection creates a cosine float32 vector index. Creating an
// existing index is a no-op.
func (s *S3VectorsStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.CreateCollection")
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

	_, err := s.client.CreateIndex(ctx, &s3vectors.CreateIndexInput{
		VectorBucketName: aws.String(s.config.Bucket),
		IndexName:        aws.String(name),
		DataType:         types.DataTypeFloat32,
		Dimension:        aws.Int32(int32(dimension)),
		DistanceMetric:   types.DistanceMetricCosine,
	})
	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: creating index: %v", ErrBackendRequest, err)
	}
	return nil
}

// DropCollection deletes the vector index and all its vectors.
func (s *S3VectorsStore) DropCollection(ctx context.Context, name string) error {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.DropCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	_, err := s.client.DeleteIndex(ctx, &s3vectors.DeleteIndexInput{
		VectorBucketName: aws.String(s.config.Bucket),
		IndexName:        aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		span.RecordError(err)
		return fmt.Errorf("%w: deleting index: %v", ErrBackendRequest, err)
	}
	return nil
}

// HasCollection reports whether the vector index exists.
func (s *S3VectorsStore) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.HasCollection")
	defer span.End()

	_, err := s.client.GetIndex(ctx, &s3vectors.GetIndexInput{
		VectorBucketName: aws.String(s.config.Bucket),
		IndexName:        aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("%w: getting index: %v", ErrBackendRequest, err)
	}
	return true, nil
}

// ListCollections returns all vector index names in the bucket.
func (s *S3VectorsStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.ListCollections")
	defer span.End()

	var names []string
	var nextToken *string
	for {
		out, err := s.client.ListIndexes(ctx, &s3vectors.ListIndexesInput{
			VectorBucketName: aws.String(s.config.Bucket),
			NextToken:        nextToken,
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: listing indexes: %v", ErrBackendRequest, err)
		}
		for _, idx := range out.Indexes {
			names = append(names, aws.ToString(idx.IndexName))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return names, nil
}

// Insert submits vectors in chunks under the PutVectors ceiling (500 per
// call), sequentially, aborting on the first chunk failure.
func (s *S3VectorsStore) Insert(ctx context.Context, collection string, docs []Document) error {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	err := submitChunks(docs, s3vectorsBatchCeiling, func(chunk []Document) error {
		vectors := make([]types.PutInputVector, len(chunk))
		for i, doc := range chunk {
			vectors[i] = types.PutInputVector{
				Key:      aws.String(doc.ID),
				Data:     &types.VectorDataMemberFloat32{Value: doc.Vector},
				Metadata: document.NewLazyDocument(vectorMetadata(doc)),
			}
		}
		_, err := s.client.PutVectors(ctx, &s3vectors.PutVectorsInput{
			VectorBucketName: aws.String(s.config.Bucket),
			IndexName:        aws.String(collection),
			Vectors:          vectors,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	s.logger.Debug("inserted vectors into s3vectors",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// vectorMetadata flattens Document fields into filterable metadata. All
// values are strings so round-tripping avoids number-type ambiguity in the
// document encoding.
func vectorMetadata(doc Document) map[string]interface{} {
	meta := make(map[string]interface{}, len(doc.Metadata)+5)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["content"] = doc.Content
	meta[metaRelativePath] = doc.RelativePath
	meta[metaStartLine] = fmt.Sprintf("%d", doc.StartLine)
	meta[metaEndLine] = fmt.Sprintf("%d", doc.EndLine)
	meta[metaFileExtension] = doc.FileExtension
	return meta
}

// Search queries nearest neighbors and converts cosine distance to
// similarity (1 - distance) so thresholds behave like the other backends.
func (s *S3VectorsStore) Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]SearchResult, error) {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return []SearchResult{}, nil
	}

	out, err := s.client.QueryVectors(ctx, &s3vectors.QueryVectorsInput{
		VectorBucketName: aws.String(s.config.Bucket),
		IndexName:        aws.String(collection),
		QueryVector:      &types.VectorDataMemberFloat32{Value: vector},
		TopK:             aws.Int32(int32(topK)),
		ReturnDistance:   true,
		ReturnMetadata:   true,
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}

	results := make([]SearchResult, 0, len(out.Vectors))
	for _, v := range out.Vectors {
		if v.Distance == nil {
			return nil, fmt.Errorf("%w: query result missing distance", ErrMalformedResponse)
		}
		score := 1 - *v.Distance
		if score < threshold {
			continue
		}
		doc, err := documentFromS3Metadata(aws.ToString(v.Key), v.Metadata)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Document: doc, Score: score})
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

// documentFromS3Metadata rebuilds a Document from the metadata document
// attached to a query result. A missing metadata document fails fast.
func documentFromS3Metadata(key string, meta document.Interface) (Document, error) {
	if meta == nil {
		return Document{}, fmt.Errorf("%w: query result %q missing metadata", ErrMalformedResponse, key)
	}

	var raw map[string]interface{}
	if err := meta.UnmarshalSmithyDocument(&raw); err != nil {
		return Document{}, fmt.Errorf("%w: decoding metadata for %q: %v", ErrMalformedResponse, key, err)
	}

	asString := make(map[string]string, len(raw))
	for k, v := range raw {
		if sv, ok := v.(string); ok {
			asString[k] = sv
		}
	}

	content := asString["content"]
	delete(asString, "content")
	return documentFromMetadata(key, content, asString), nil
}

// HybridSearch widens the vector search, then fuses the vector similarity
// with the lexical term-density score via Rank.
func (s *S3VectorsStore) HybridSearch(ctx context.Context, collection string, vector []float32, query string, topK int, threshold float32) ([]SearchResult, error) {
	candidates, err := s.Search(ctx, collection, vector, topK*hybridOverfetch, threshold)
	if err != nil {
		return nil, err
	}
	return Rank(candidates, query, topK), nil
}

// DeleteByID deletes vectors by key.
func (s *S3VectorsStore) DeleteByID(ctx context.Context, collection string, ids []string) error {
	ctx, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	_, err := s.client.DeleteVectors(ctx, &s3vectors.DeleteVectorsInput{
		VectorBucketName: aws.String(s.config.Bucket),
		IndexName:        aws.String(collection),
		Keys:             ids,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrBackendRequest, err)
	}
	return nil
}

// DeleteByPath is unsupported: S3 Vectors has no server-side filtered
// deletion. The call logs a warning and returns nil with no effect;
// callers must not assume the chunks were removed.
func (s *S3VectorsStore) DeleteByPath(ctx context.Context, collection string, relativePath string) error {
	_, span := s3vectorsTracer.Start(ctx, "S3VectorsStore.DeleteByPath")
	defer span.End()

	s.logger.Warn("delete-by-path is not supported by the s3vectors backend; no vectors were deleted",
		zap.String("collection", collection),
		zap.String("relative_path", relativePath),
	)
	return nil
}

// Close is a no-op; the AWS client holds no persistent connection.
func (s *S3VectorsStore) Close() error {
	return nil
}
