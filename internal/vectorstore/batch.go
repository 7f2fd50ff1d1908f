package vectorstore

import "fmt"

// submitChunks partitions docs into fixed-size chunks under the backend's
// per-call batch ceiling and submits them sequentially. The last chunk may
// be smaller. The whole operation aborts on the first chunk failure; there
// is no partial-success tracking and no rollback.
func submitChunks(docs []Document, size int, submit func(chunk []Document) error) error {
	if size <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		if err := submit(docs[start:end]); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}
