package embeddings

import (
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/voyageai"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// newVoyageAIEmbedder builds an embedder for the VoyageAI API. The
// voyage-code family is tuned for source code retrieval.
func newVoyageAIEmbedder(cfg *config.Config, model string) (lcembeddings.Embedder, error) {
	opts := []voyageai.Option{
		voyageai.WithToken(cfg.VoyageAI.APIKey.Value()),
		voyageai.WithModel(model),
	}
	if cfg.Embedding.BatchSize > 0 {
		opts = append(opts, voyageai.WithBatchSize(cfg.Embedding.BatchSize))
	}

	client, err := voyageai.NewVoyageAI(opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
