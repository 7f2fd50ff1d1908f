// Package embeddings generates vector embeddings via pluggable backends.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/codectx/internal/config"
)

var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings config")

	// ErrEmptyInput indicates an embedding request with no texts.
	ErrEmptyInput = errors.New("no texts to embed")

	// ErrMalformedResponse indicates the backend returned an unusable payload.
	ErrMalformedResponse = errors.New("malformed embedding response")
)

// Provider generates embeddings for documents and queries.
type Provider interface {
	// EmbedDocuments embeds a batch of texts, one vector per text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the configured model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates the embedding provider selected by the configuration.
func NewProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := cfg.EmbeddingModel()

	var (
		embedder lcembeddings.Embedder
		err      error
	)
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		embedder, err = newOpenAIEmbedder(cfg, model)
	case config.ProviderVoyageAI:
		embedder, err = newVoyageAIEmbedder(cfg, model)
	case config.ProviderGemini:
		embedder, err = newGeminiEmbedder(ctx, cfg, model)
	case config.ProviderOllama:
		embedder, err = newOllamaEmbedder(cfg, model)
	case config.ProviderBedrock:
		embedder, err = newBedrockEmbedder(ctx, cfg, model)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s embedder: %w", cfg.Embedding.Provider, err)
	}

	var limiter *rate.Limiter
	if rps := cfg.Embedding.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	dimension := detectDimension(model)
	logger.Info("embedding provider initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", model),
		zap.Int("dimension", dimension),
	)

	return &langchainProvider{
		embedder:  embedder,
		model:     model,
		dimension: dimension,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// langchainProvider adapts a langchaingo embedder to Provider, adding
// input validation, payload validation, and optional rate limiting.
type langchainProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func (p *langchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d documents with %s: %w", len(texts), p.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrMalformedResponse, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", ErrMalformedResponse, i)
		}
	}

	p.logger.Debug("embedded documents",
		zap.String("model", p.model),
		zap.Int("count", len(texts)),
	)
	return vectors, nil
}

func (p *langchainProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query with %s: %w", p.model, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrMalformedResponse)
	}
	return vector, nil
}

func (p *langchainProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; all backends are HTTP clients.
func (p *langchainProvider) Close() error {
	return nil
}

func (p *langchainProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// embedderOptions builds shared langchaingo embedder options from config.
func embedderOptions(cfg *config.Config) []lcembeddings.Option {
	opts := []lcembeddings.Option{lcembeddings.WithStripNewLines(false)}
	if cfg.Embedding.BatchSize > 0 {
		opts = append(opts, lcembeddings.WithBatchSize(cfg.Embedding.BatchSize))
	}
	return opts
}
