package embeddings

import (
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

// newOllamaEmbedder builds an embedder backed by a local Ollama server.
// No API key is required.
func newOllamaEmbedder(cfg *config.Config, model string) (lcembeddings.Embedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if cfg.Ollama.Host != "" {
		opts = append(opts, ollama.WithServerURL(cfg.Ollama.Host))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return lcembeddings.NewEmbedder(client, embedderOptions(cfg)...)
}
