package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/config"
	"github.com/fyrsmithlabs/codectx/internal/index"
	"github.com/fyrsmithlabs/codectx/internal/vectorstore"
)

type staticEmbedder struct{}

func (staticEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (staticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (staticEmbedder) Dimension() int { return 3 }
func (staticEmbedder) Close() error   { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	}, zap.NewNop())
	require.NoError(t, err)

	snapshots, err := index.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	svc := index.NewService(store, staticEmbedder{}, snapshots, config.IndexConfig{
		ChunkLines:   100,
		ChunkOverlap: 10,
	}, zap.NewNop())

	srv, err := NewServer(DefaultConfig(), svc)
	require.NoError(t, err)
	return srv
}

func newTestCodebase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "handler.go"),
		[]byte("package web\n\n// ServeHTTP routes incoming requests.\nfunc ServeHTTP() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "store.go"),
		[]byte("package web\n\nfunc openStore() {}\n"), 0o644))
	return root
}

func TestHandleIndexCodebase(t *testing.T) {
	srv := newTestServer(t)
	root := newTestCodebase(t)

	out, err := srv.handleIndexCodebase(context.Background(), indexCodebaseInput{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 2, out.FilesScanned)
	assert.Equal(t, 2, out.FilesIndexed)
	assert.Equal(t, 2, out.ChunksIndexed)
	assert.Regexp(t, `^code_chunks_[0-9a-f]{8}$`, out.Collection)
}

func TestHandleIndexCodebase_RequiresPath(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleIndexCodebase(context.Background(), indexCodebaseInput{})
	assert.Error(t, err)
}

func TestHandleSearchCode(t *testing.T) {
	srv := newTestServer(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	_, err := srv.handleIndexCodebase(ctx, indexCodebaseInput{Path: root})
	require.NoError(t, err)

	out, err := srv.handleSearchCode(ctx, searchCodeInput{Path: root, Query: "ServeHTTP", Limit: 5})
	require.NoError(t, err)
	require.NotZero(t, out.Count)
	assert.Equal(t, "handler.go", out.Results[0].Path)
	assert.Equal(t, 1, out.Results[0].StartLine)
	assert.NotEmpty(t, out.Results[0].Content)
}

func TestHandleSearchCode_Validation(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleSearchCode(context.Background(), searchCodeInput{Query: "x"})
	assert.Error(t, err)

	_, err = srv.handleSearchCode(context.Background(), searchCodeInput{Path: "/tmp"})
	assert.Error(t, err)
}

func TestHandleClearIndex(t *testing.T) {
	srv := newTestServer(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	_, err := srv.handleIndexCodebase(ctx, indexCodebaseInput{Path: root})
	require.NoError(t, err)

	out, err := srv.handleClearIndex(ctx, clearIndexInput{Path: root})
	require.NoError(t, err)
	assert.True(t, out.Cleared)

	_, err = srv.handleSearchCode(ctx, searchCodeInput{Path: root, Query: "ServeHTTP"})
	assert.ErrorIs(t, err, index.ErrNotIndexed)
}

func TestHandleIndexingStatus(t *testing.T) {
	srv := newTestServer(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	out, err := srv.handleIndexingStatus(ctx, indexingStatusInput{})
	require.NoError(t, err)
	assert.Zero(t, out.Count)

	_, err = srv.handleIndexCodebase(ctx, indexCodebaseInput{Path: root})
	require.NoError(t, err)

	out, err = srv.handleIndexingStatus(ctx, indexingStatusInput{Path: root})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "ready", out.Statuses[0].State)
	assert.Equal(t, 2, out.Statuses[0].FilesIndexed)

	_, err = srv.handleIndexingStatus(ctx, indexingStatusInput{Path: t.TempDir()})
	assert.Error(t, err)
}
