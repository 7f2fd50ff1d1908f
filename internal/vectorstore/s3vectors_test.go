package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/document"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeS3VectorsClient records calls and returns canned responses.
type fakeS3VectorsClient struct {
	putCalls  [][]types.PutInputVector
	putErrAt  int
	queryOut  *s3vectors.QueryVectorsOutput
	queryErr  error
	createErr error
	getErr    error
	listPages []*s3vectors.ListIndexesOutput
	listCall  int

	deletedKeys       [][]string
	deleteVectorCalls int
}

func (f *fakeS3VectorsClient) CreateIndex(ctx context.Context, in *s3vectors.CreateIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.CreateIndexOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3vectors.CreateIndexOutput{}, nil
}

func (f *fakeS3VectorsClient) DeleteIndex(ctx context.Context, in *s3vectors.DeleteIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error) {
	return &s3vectors.DeleteIndexOutput{}, nil
}

func (f *fakeS3VectorsClient) GetIndex(ctx context.Context, in *s3vectors.GetIndexInput, opts ...func(*s3vectors.Options)) (*s3vectors.GetIndexOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3vectors.GetIndexOutput{}, nil
}

func (f *fakeS3VectorsClient) ListIndexes(ctx context.Context, in *s3vectors.ListIndexesInput, opts ...func(*s3vectors.Options)) (*s3vectors.ListIndexesOutput, error) {
	page := f.listPages[f.listCall]
	f.listCall++
	return page, nil
}

func (f *fakeS3VectorsClient) PutVectors(ctx context.Context, in *s3vectors.PutVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.PutVectorsOutput, error) {
	f.putCalls = append(f.putCalls, in.Vectors)
	if f.putErrAt > 0 && len(f.putCalls) == f.putErrAt {
		return nil, errors.New("throttled")
	}
	return &s3vectors.PutVectorsOutput{}, nil
}

func (f *fakeS3VectorsClient) QueryVectors(ctx context.Context, in *s3vectors.QueryVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryOut, nil
}

func (f *fakeS3VectorsClient) DeleteVectors(ctx context.Context, in *s3vectors.DeleteVectorsInput, opts ...func(*s3vectors.Options)) (*s3vectors.DeleteVectorsOutput, error) {
	f.deleteVectorCalls++
	f.deletedKeys = append(f.deletedKeys, in.Keys)
	return &s3vectors.DeleteVectorsOutput{}, nil
}

func newFakeS3VectorsStore(fake *fakeS3VectorsClient) *S3VectorsStore {
	return &S3VectorsStore{
		client: fake,
		config: S3VectorsConfig{Bucket: "code-vectors"},
		logger: zap.NewNop(),
	}
}

func s3Docs(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{
			ID:           fmt.Sprintf("chunk-%d", i),
			Content:      "func main() {}",
			Vector:       []float32{1, 0, 0},
			RelativePath: "main.go",
			StartLine:    1,
			EndLine:      2,
		}
	}
	return docs
}

func queryVector(key string, distance float32, meta map[string]interface{}) types.QueryOutputVector {
	v := types.QueryOutputVector{
		Key:      aws.String(key),
		Distance: aws.Float32(distance),
	}
	if meta != nil {
		v.Metadata = document.NewLazyDocument(meta)
	}
	return v
}

func TestS3VectorsStore_InsertChunksUnderCeiling(t *testing.T) {
	fake := &fakeS3VectorsClient{}
	store := newFakeS3VectorsStore(fake)

	err := store.Insert(context.Background(), "code_chunks_aaaa0000", s3Docs(1200))
	require.NoError(t, err)

	require.Len(t, fake.putCalls, 3)
	assert.Len(t, fake.putCalls[0], 500)
	assert.Len(t, fake.putCalls[1], 500)
	assert.Len(t, fake.putCalls[2], 200)

	first := fake.putCalls[0][0]
	assert.Equal(t, "chunk-0", aws.ToString(first.Key))
	require.IsType(t, &types.VectorDataMemberFloat32{}, first.Data)
	assert.Equal(t, []float32{1, 0, 0}, first.Data.(*types.VectorDataMemberFloat32).Value)
	require.NotNil(t, first.Metadata)
}

func TestS3VectorsStore_Insert_AbortsOnFirstFailure(t *testing.T) {
	fake := &fakeS3VectorsClient{putErrAt: 2}
	store := newFakeS3VectorsStore(fake)

	err := store.Insert(context.Background(), "code_chunks_aaaa0000", s3Docs(1200))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendRequest)
	// The third chunk is never submitted.
	assert.Len(t, fake.putCalls, 2)
}

func TestS3VectorsStore_Insert_Empty(t *testing.T) {
	store := newFakeS3VectorsStore(&fakeS3VectorsClient{})

	err := store.Insert(context.Background(), "code_chunks_aaaa0000", nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestS3VectorsStore_Search_ConvertsDistanceAndFilters(t *testing.T) {
	meta := map[string]interface{}{
		"content":        "func ParseConfig() {}",
		"relative_path":  "config.go",
		"start_line":     "12",
		"end_line":       "40",
		"file_extension": "go",
	}
	fake := &fakeS3VectorsClient{
		queryOut: &s3vectors.QueryVectorsOutput{
			Vectors: []types.QueryOutputVector{
				queryVector("chunk-near", 0.1, meta),
				queryVector("chunk-far", 0.6, meta),
			},
		},
	}
	store := newFakeS3VectorsStore(fake)

	results, err := store.Search(context.Background(), "code_chunks_aaaa0000", []float32{1, 0, 0}, 10, 0.7)
	require.NoError(t, err)

	// 1 - 0.1 = 0.9 passes the threshold, 1 - 0.6 = 0.4 does not.
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-near", results[0].Document.ID)
	assert.InDelta(t, 0.9, float64(results[0].Score), 1e-6)
	assert.Equal(t, "config.go", results[0].Document.RelativePath)
	assert.Equal(t, 12, results[0].Document.StartLine)
	assert.Equal(t, 40, results[0].Document.EndLine)
	assert.Equal(t, "go", results[0].Document.FileExtension)
	assert.Equal(t, "func ParseConfig() {}", results[0].Document.Content)
}

func TestS3VectorsStore_Search_MissingDistance(t *testing.T) {
	fake := &fakeS3VectorsClient{
		queryOut: &s3vectors.QueryVectorsOutput{
			Vectors: []types.QueryOutputVector{
				{Key: aws.String("chunk-0")},
			},
		},
	}
	store := newFakeS3VectorsStore(fake)

	_, err := store.Search(context.Background(), "code_chunks_aaaa0000", []float32{1, 0, 0}, 10, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestS3VectorsStore_Search_MissingMetadata(t *testing.T) {
	fake := &fakeS3VectorsClient{
		queryOut: &s3vectors.QueryVectorsOutput{
			Vectors: []types.QueryOutputVector{
				queryVector("chunk-0", 0.1, nil),
			},
		},
	}
	store := newFakeS3VectorsStore(fake)

	_, err := store.Search(context.Background(), "code_chunks_aaaa0000", []float32{1, 0, 0}, 10, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestS3VectorsStore_Search_CollectionNotFound(t *testing.T) {
	fake := &fakeS3VectorsClient{queryErr: &types.NotFoundException{}}
	store := newFakeS3VectorsStore(fake)

	_, err := store.Search(context.Background(), "code_chunks_aaaa0000", []float32{1, 0, 0}, 10, 0)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestS3VectorsStore_DeleteByID(t *testing.T) {
	fake := &fakeS3VectorsClient{}
	store := newFakeS3VectorsStore(fake)

	err := store.DeleteByID(context.Background(), "code_chunks_aaaa0000", []string{"chunk-1", "chunk-2"})
	require.NoError(t, err)
	require.Len(t, fake.deletedKeys, 1)
	assert.Equal(t, []string{"chunk-1", "chunk-2"}, fake.deletedKeys[0])

	// No request for an empty ID list.
	require.NoError(t, store.DeleteByID(context.Background(), "code_chunks_aaaa0000", nil))
	assert.Equal(t, 1, fake.deleteVectorCalls)
}

func TestS3VectorsStore_DeleteByPath_WarnsAndNoOps(t *testing.T) {
	fake := &fakeS3VectorsClient{}
	core, logs := observer.New(zap.WarnLevel)
	store := newFakeS3VectorsStore(fake)
	store.logger = zap.New(core)

	err := store.DeleteByPath(context.Background(), "code_chunks_aaaa0000", "main.go")
	require.NoError(t, err)

	// Nothing is deleted, and the limitation is surfaced to operators.
	assert.Zero(t, fake.deleteVectorCalls)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "not supported")
}

func TestS3VectorsStore_CreateCollection(t *testing.T) {
	fake := &fakeS3VectorsClient{}
	store := newFakeS3VectorsStore(fake)
	ctx := context.Background()

	require.NoError(t, store.CreateCollection(ctx, "code_chunks_aaaa0000", 1536))

	// Re-creating an existing index is a no-op.
	fake.createErr = &types.ConflictException{}
	require.NoError(t, store.CreateCollection(ctx, "code_chunks_aaaa0000", 1536))

	assert.ErrorIs(t, store.CreateCollection(ctx, "Bad-Name", 1536), ErrInvalidCollectionName)
	assert.ErrorIs(t, store.CreateCollection(ctx, "code_chunks_aaaa0000", 0), ErrInvalidConfig)
}

func TestS3VectorsStore_HasCollection(t *testing.T) {
	fake := &fakeS3VectorsClient{}
	store := newFakeS3VectorsStore(fake)

	exists, err := store.HasCollection(context.Background(), "code_chunks_aaaa0000")
	require.NoError(t, err)
	assert.True(t, exists)

	fake.getErr = &types.NotFoundException{}
	exists, err = store.HasCollection(context.Background(), "code_chunks_aaaa0000")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3VectorsStore_ListCollections_Paginates(t *testing.T) {
	fake := &fakeS3VectorsClient{
		listPages: []*s3vectors.ListIndexesOutput{
			{
				Indexes:   []types.IndexSummary{{IndexName: aws.String("code_chunks_aaaa0000")}},
				NextToken: aws.String("page-2"),
			},
			{
				Indexes: []types.IndexSummary{{IndexName: aws.String("code_chunks_bbbb0000")}},
			},
		},
	}
	store := newFakeS3VectorsStore(fake)

	names, err := store.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"code_chunks_aaaa0000", "code_chunks_bbbb0000"}, names)
}

func TestS3VectorsConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, S3VectorsConfig{}.Validate(), ErrInvalidConfig)
	assert.NoError(t, S3VectorsConfig{Bucket: "code-vectors"}.Validate())
}
