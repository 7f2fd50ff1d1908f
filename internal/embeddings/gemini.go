package embeddings

import (
	"context"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// newGeminiEmbedder builds an embedder for Gemini embedding models.
func newGeminiEmbedder(ctx context.Context, cfg *config.Config, model string) (lcembeddings.Embedder, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.Gemini.APIKey.Value()),
		googleai.WithDefaultEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	return lcembeddings.NewEmbedder(client, embedderOptions(cfg)...)
}
