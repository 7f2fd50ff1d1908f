package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/config"
	"github.com/fyrsmithlabs/codectx/internal/vectorstore"
)

// unitEmbedder maps every text to the same unit vector, so hybrid search
// ordering is driven entirely by the lexical score.
type unitEmbedder struct{}

func (unitEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (unitEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (unitEmbedder) Dimension() int { return 3 }
func (unitEmbedder) Close() error   { return nil }

func newTestService(t *testing.T) *Service {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	}, zap.NewNop())
	require.NoError(t, err)

	snapshots, err := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	return NewService(store, unitEmbedder{}, snapshots, config.IndexConfig{
		ChunkLines:   100,
		ChunkOverlap: 10,
	}, zap.NewNop())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestCodebase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tParseConfig()\n}\n")
	writeFile(t, root, "config.go", "package main\n\n// ParseConfig loads settings from the environment.\nfunc ParseConfig() {}\n")
	writeFile(t, root, "scripts/run.py", "import sys\n\nprint(sys.argv)\n")
	writeFile(t, root, "node_modules/react/index.js", "module.exports = {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin"), []byte{0xff, 0xfe, 0x00, 0x01}, 0o644))
	return root
}

func TestService_IndexCodebase(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)

	result, err := svc.IndexCodebase(context.Background(), root, false)
	require.NoError(t, err)

	// node_modules and the binary file are excluded.
	assert.Equal(t, 3, result.FilesScanned)
	assert.Equal(t, 3, result.FilesIndexed)
	assert.Equal(t, 0, result.FilesRemoved)
	assert.Equal(t, 3, result.ChunksIndexed)
	assert.Regexp(t, `^code_chunks_[0-9a-f]{8}$`, result.Collection)
}

func TestService_Search(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)

	_, err := svc.IndexCodebase(context.Background(), root, false)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), root, "ParseConfig", SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "config.go", results[0].Document.RelativePath)
	assert.Equal(t, 1, results[0].Document.StartLine)
}

func TestService_Search_ExtensionFilter(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)

	_, err := svc.IndexCodebase(context.Background(), root, false)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), root, "import sys", SearchOptions{
		Limit:      10,
		Extensions: []string{".py"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "py", r.Document.FileExtension)
	}
}

func TestService_Search_NotIndexed(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Search(context.Background(), t.TempDir(), "anything", SearchOptions{})
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestService_IncrementalReindex(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	_, err := svc.IndexCodebase(ctx, root, false)
	require.NoError(t, err)

	// Unchanged tree: nothing to re-embed.
	second, err := svc.IndexCodebase(ctx, root, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesIndexed)
	assert.Equal(t, 0, second.FilesRemoved)

	// One modified, one removed.
	writeFile(t, root, "config.go", "package main\n\nfunc ParseConfig() {}\n\nfunc ReloadConfig() {}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "scripts/run.py")))

	third, err := svc.IndexCodebase(ctx, root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, third.FilesIndexed)
	assert.Equal(t, 1, third.FilesRemoved)

	results, err := svc.Search(ctx, root, "ReloadConfig", SearchOptions{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "config.go", results[0].Document.RelativePath)
}

func TestService_ForceReindex(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	_, err := svc.IndexCodebase(ctx, root, false)
	require.NoError(t, err)

	forced, err := svc.IndexCodebase(ctx, root, true)
	require.NoError(t, err)
	assert.Equal(t, 3, forced.FilesIndexed)
}

func TestService_ClearIndex(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)
	ctx := context.Background()

	_, err := svc.IndexCodebase(ctx, root, false)
	require.NoError(t, err)

	require.NoError(t, svc.ClearIndex(ctx, root))

	_, err = svc.Search(ctx, root, "ParseConfig", SearchOptions{})
	assert.ErrorIs(t, err, ErrNotIndexed)

	assert.ErrorIs(t, svc.ClearIndex(ctx, root), ErrNotIndexed)
}

func TestService_Status(t *testing.T) {
	svc := newTestService(t)
	root := newTestCodebase(t)

	_, ok := svc.Status(root)
	assert.False(t, ok)

	_, err := svc.IndexCodebase(context.Background(), root, false)
	require.NoError(t, err)

	status, ok := svc.Status(root)
	require.True(t, ok)
	assert.Equal(t, StateReady, status.State)
	assert.Equal(t, 3, status.FilesIndexed)
	assert.Equal(t, 3, status.ChunksIndexed)
	assert.False(t, status.CompletedAt.IsZero())

	all := svc.Statuses()
	require.Len(t, all, 1)
	assert.Equal(t, status.Path, all[0].Path)
}

func TestService_InvalidPath(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.IndexCodebase(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrInvalidPath)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = svc.IndexCodebase(context.Background(), file, false)
	assert.ErrorIs(t, err, ErrInvalidPath)
}
