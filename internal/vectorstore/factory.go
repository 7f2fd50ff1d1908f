package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// New builds the vector store selected by the configuration. The backend
// is chosen once at startup; callers hold the Store interface and never
// branch on the provider again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case config.StoreChromem:
		return NewChromemStore(ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		}, logger)
	case config.StoreMilvus:
		return NewMilvusStore(ctx, MilvusConfig{
			Address:  cfg.Milvus.Address,
			Token:    cfg.Milvus.Token.Value(),
			Database: cfg.Milvus.Database,
		}, logger)
	case config.StoreS3Vectors:
		return NewS3VectorsStore(ctx, S3VectorsConfig{
			Bucket: cfg.S3Vectors.Bucket,
			Region: cfg.AWS.Region,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
