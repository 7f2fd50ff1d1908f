package embeddings

import (
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// newOpenAIEmbedder builds an embedder for the OpenAI API. A custom base
// URL also serves any OpenAI-compatible endpoint.
func newOpenAIEmbedder(cfg *config.Config, model string) (lcembeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.OpenAI.APIKey.Value()),
		openai.WithEmbeddingModel(model),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return lcembeddings.NewEmbedder(client, embedderOptions(cfg)...)
}
