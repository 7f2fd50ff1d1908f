package embeddings

import "strings"

// modelDimensions maps known embedding models to their output dimension.
var modelDimensions = map[string]int{
	"text-embedding-3-small":       1536,
	"text-embedding-3-large":       3072,
	"text-embedding-ada-002":       1536,
	"voyage-code-3":                1024,
	"voyage-code-2":                1536,
	"voyage-3":                     1024,
	"voyage-3-lite":                512,
	"gemini-embedding-001":         3072,
	"text-embedding-004":           768,
	"nomic-embed-text":             768,
	"mxbai-embed-large":            1024,
	"all-minilm":                   384,
	"amazon.titan-embed-text-v1":   1536,
	"amazon.titan-embed-text-v2:0": 1024,
	"cohere.embed-english-v3":      1024,
	"cohere.embed-multilingual-v3": 1024,
}

// detectDimension returns the embedding dimension for a model, falling
// back to a size heuristic for unknown models.
func detectDimension(model string) int {
	if dim, ok := modelDimensions[model]; ok {
		return dim
	}
	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"), strings.Contains(model, "lite"):
		return 384
	default:
		return 768
	}
}
