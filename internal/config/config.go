// Package config provides configuration loading for codectx.
//
// All configuration is supplied via named environment variables with
// documented defaults. The loaded Config is an explicit structured value
// passed to collaborators at construction time; there is no global state
// and secrets are never written to logs (see Secret and Redacted).
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Embedding provider names accepted by EMBEDDING_PROVIDER.
const (
	ProviderOpenAI   = "openai"
	ProviderVoyageAI = "voyageai"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderBedrock  = "bedrock"
)

// Vector store backend names accepted by VECTORSTORE_PROVIDER.
const (
	StoreChromem   = "chromem"
	StoreMilvus    = "milvus"
	StoreS3Vectors = "s3vectors"
)

// Config is the root configuration for codectx.
type Config struct {
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	VoyageAI    VoyageAIConfig    `koanf:"voyageai"`
	Gemini      GeminiConfig      `koanf:"gemini"`
	Ollama      OllamaConfig      `koanf:"ollama"`
	Bedrock     BedrockConfig     `koanf:"bedrock"`
	AWS         AWSConfig         `koanf:"aws"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Milvus      MilvusConfig      `koanf:"milvus"`
	S3Vectors   S3VectorsConfig   `koanf:"s3vectors"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Index       IndexConfig       `koanf:"index"`
	Log         LogConfig         `koanf:"log"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is the embedding backend: openai, voyageai, gemini, ollama, bedrock.
	// Env: EMBEDDING_PROVIDER (default: openai)
	Provider string `koanf:"provider"`

	// Model is the generic model name. A provider-specific model variable
	// (e.g. OPENAI_EMBEDDING_MODEL) takes precedence over this one.
	// Env: EMBEDDING_MODEL
	Model string `koanf:"model"`

	// BatchSize caps texts per embedding request. 0 uses the provider default.
	// Env: EMBEDDING_BATCH_SIZE
	BatchSize int `koanf:"batch_size"`

	// RequestsPerSecond rate-limits embedding calls. 0 disables limiting.
	// Env: EMBEDDING_REQUESTS_PER_SECOND
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	// Env: OPENAI_API_KEY
	APIKey Secret `koanf:"api_key"`
	// BaseURL overrides the API endpoint, which also serves any
	// OpenAI-compatible server. Env: OPENAI_BASE_URL
	BaseURL string `koanf:"base_url"`
	// Env: OPENAI_EMBEDDING_MODEL (overrides EMBEDDING_MODEL)
	EmbeddingModel string `koanf:"embedding_model"`
}

// VoyageAIConfig configures the VoyageAI embedding provider.
type VoyageAIConfig struct {
	// Env: VOYAGEAI_API_KEY
	APIKey Secret `koanf:"api_key"`
	// Env: VOYAGEAI_EMBEDDING_MODEL (overrides EMBEDDING_MODEL)
	EmbeddingModel string `koanf:"embedding_model"`
}

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	// Env: GEMINI_API_KEY
	APIKey Secret `koanf:"api_key"`
	// Env: GEMINI_EMBEDDING_MODEL (overrides EMBEDDING_MODEL)
	EmbeddingModel string `koanf:"embedding_model"`
}

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	// Env: OLLAMA_HOST (default: http://localhost:11434)
	Host string `koanf:"host"`
	// Env: OLLAMA_EMBEDDING_MODEL (overrides EMBEDDING_MODEL)
	EmbeddingModel string `koanf:"embedding_model"`
}

// BedrockConfig configures the AWS Bedrock embedding provider.
// Credentials come from the standard AWS credential chain.
type BedrockConfig struct {
	// Env: BEDROCK_EMBEDDING_MODEL (overrides EMBEDDING_MODEL)
	EmbeddingModel string `koanf:"embedding_model"`
}

// AWSConfig holds settings shared by AWS-backed components.
type AWSConfig struct {
	// Env: AWS_REGION
	Region string `koanf:"region"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is the backend: chromem, milvus, s3vectors.
	// Env: VECTORSTORE_PROVIDER (default: chromem)
	Provider string `koanf:"provider"`
}

// MilvusConfig configures the Milvus vector store.
type MilvusConfig struct {
	// Env: MILVUS_ADDRESS (default: localhost:19530)
	Address string `koanf:"address"`
	// Env: MILVUS_TOKEN
	Token Secret `koanf:"token"`
	// Env: MILVUS_DATABASE
	Database string `koanf:"database"`
}

// S3VectorsConfig configures the AWS S3 Vectors store.
type S3VectorsConfig struct {
	// Env: S3VECTORS_BUCKET
	Bucket string `koanf:"bucket"`
}

// ChromemConfig configures the embedded chromem store.
type ChromemConfig struct {
	// Env: CHROMEM_PATH (default: ~/.codectx/vectorstore)
	Path string `koanf:"path"`
	// Env: CHROMEM_COMPRESS
	Compress bool `koanf:"compress"`
}

// IndexConfig tunes the indexing pipeline.
type IndexConfig struct {
	// ChunkLines is the chunk size in lines. Env: INDEX_CHUNK_LINES (default: 100)
	ChunkLines int `koanf:"chunk_lines"`
	// ChunkOverlap is the overlap between consecutive chunks in lines.
	// Env: INDEX_CHUNK_OVERLAP (default: 10)
	ChunkOverlap int `koanf:"chunk_overlap"`
	// MaxFileSize is the per-file size ceiling in bytes.
	// Env: INDEX_MAX_FILE_SIZE (default: 1 MiB)
	MaxFileSize int64 `koanf:"max_file_size"`
	// SnapshotDir holds incremental-sync snapshots.
	// Env: INDEX_SNAPSHOT_DIR (default: ~/.codectx/snapshots)
	SnapshotDir string `koanf:"snapshot_dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Env: LOG_LEVEL (default: info)
	Level string `koanf:"level"`
	// Env: LOG_FORMAT (default: json; "console" for humans)
	Format string `koanf:"format"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates the result.
//
// Environment variables map to config keys by splitting on the first
// underscore: EMBEDDING_PROVIDER -> embedding.provider,
// MILVUS_ADDRESS -> milvus.address, S3VECTORS_BUCKET -> s3vectors.bucket.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = "http://localhost:11434"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = StoreChromem
	}
	if cfg.Milvus.Address == "" {
		cfg.Milvus.Address = "localhost:19530"
	}
	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.codectx/vectorstore"
	}

	if cfg.Index.ChunkLines == 0 {
		cfg.Index.ChunkLines = 100
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 10
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = 1024 * 1024
	}
	if cfg.Index.SnapshotDir == "" {
		cfg.Index.SnapshotDir = "~/.codectx/snapshots"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks that the configuration is usable for the selected
// provider and store.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if !c.OpenAI.APIKey.IsSet() && c.OpenAI.BaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
	case ProviderVoyageAI:
		if !c.VoyageAI.APIKey.IsSet() {
			return fmt.Errorf("VOYAGEAI_API_KEY is required for the voyageai embedding provider")
		}
	case ProviderGemini:
		if !c.Gemini.APIKey.IsSet() {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini embedding provider")
		}
	case ProviderOllama, ProviderBedrock:
		// Ollama needs no key; Bedrock uses the AWS credential chain.
	default:
		return fmt.Errorf("unknown embedding provider: %q (supported: openai, voyageai, gemini, ollama, bedrock)", c.Embedding.Provider)
	}

	switch c.VectorStore.Provider {
	case StoreChromem, StoreMilvus:
	case StoreS3Vectors:
		if c.S3Vectors.Bucket == "" {
			return fmt.Errorf("S3VECTORS_BUCKET is required for the s3vectors store")
		}
	default:
		return fmt.Errorf("unknown vectorstore provider: %q (supported: chromem, milvus, s3vectors)", c.VectorStore.Provider)
	}

	if c.Index.ChunkLines <= 0 {
		return fmt.Errorf("INDEX_CHUNK_LINES must be positive")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkLines {
		return fmt.Errorf("INDEX_CHUNK_OVERLAP must be in [0, INDEX_CHUNK_LINES)")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("EMBEDDING_REQUESTS_PER_SECOND cannot be negative")
	}

	return nil
}

// EmbeddingModel resolves the model for the selected provider.
//
// Precedence: provider-specific variable, then EMBEDDING_MODEL, then the
// provider's documented default.
func (c *Config) EmbeddingModel() string {
	var specific, fallback string
	switch c.Embedding.Provider {
	case ProviderOpenAI:
		specific, fallback = c.OpenAI.EmbeddingModel, "text-embedding-3-small"
	case ProviderVoyageAI:
		specific, fallback = c.VoyageAI.EmbeddingModel, "voyage-code-3"
	case ProviderGemini:
		specific, fallback = c.Gemini.EmbeddingModel, "gemini-embedding-001"
	case ProviderOllama:
		specific, fallback = c.Ollama.EmbeddingModel, "nomic-embed-text"
	case ProviderBedrock:
		specific, fallback = c.Bedrock.EmbeddingModel, "amazon.titan-embed-text-v2:0"
	}
	if specific != "" {
		return specific
	}
	if c.Embedding.Model != "" {
		return c.Embedding.Model
	}
	return fallback
}

// Redacted returns a flat summary of the effective configuration that is
// safe to log: secrets appear only as presence flags.
func (c *Config) Redacted() map[string]interface{} {
	return map[string]interface{}{
		"embedding_provider":   c.Embedding.Provider,
		"embedding_model":      c.EmbeddingModel(),
		"embedding_batch_size": c.Embedding.BatchSize,
		"vectorstore_provider": c.VectorStore.Provider,
		"milvus_address":       c.Milvus.Address,
		"milvus_token_set":     c.Milvus.Token.IsSet(),
		"s3vectors_bucket":     c.S3Vectors.Bucket,
		"chromem_path":         c.Chromem.Path,
		"aws_region":           c.AWS.Region,
		"openai_key_set":       c.OpenAI.APIKey.IsSet(),
		"voyageai_key_set":     c.VoyageAI.APIKey.IsSet(),
		"gemini_key_set":       c.Gemini.APIKey.IsSet(),
		"ollama_host":          c.Ollama.Host,
		"chunk_lines":          c.Index.ChunkLines,
		"chunk_overlap":        c.Index.ChunkOverlap,
	}
}
