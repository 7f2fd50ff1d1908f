package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// CollectionName derives the vector store collection for a codebase from
// its absolute path: code_chunks_<first 8 hex of sha256>. The result is
// stable across runs and always passes collection name validation.
func CollectionName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", path, err)
	}

	sum := sha256.Sum256([]byte(abs))
	return "code_chunks_" + hex.EncodeToString(sum[:4]), nil
}
