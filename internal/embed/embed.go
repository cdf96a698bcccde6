// Package embed defines the embedding provider contract. The same embedder
// (same model, same dimension) must serve indexing and querying: mixing
// models breaks similarity scores.
package embed

import "context"

// Embedder converts texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is fixed at index-creation time and must match on every call.
	Dimension() int
}
