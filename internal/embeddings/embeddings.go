// Package embeddings abstracts text embedding for the local vector index.
package embeddings

import "context"

// Embedder generates a dense vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
