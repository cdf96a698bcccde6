// Package vector defines the nearest-neighbor index contract used for chunk
// embeddings and semantic retrieval.
package vector

import "context"

// Metadata is the payload attached to a stored vector. Every record written
// by the indexer carries the owning document's content_hash so a match can
// always be dereferenced back to a warehouse row.
type Metadata map[string]interface{}

// ContentHash extracts the content_hash field, empty when absent.
func (m Metadata) ContentHash() string {
	if v, ok := m["content_hash"].(string); ok {
		return v
	}
	return ""
}

// Record is a stored (id, vector, metadata) triple.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is a ranked query result. Score is cosine similarity; ordering and
// tie-breaks among equal scores are the index's own and are not
// deterministic across runs.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Index is the vector index collaborator contract.
type Index interface {
	// Upsert writes one record and confirms the index acknowledged it.
	Upsert(ctx context.Context, rec Record) error
	// Query returns the topK nearest neighbors by cosine similarity,
	// descending.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	// Fetch retrieves records by id; used for verification, not search.
	Fetch(ctx context.Context, ids []string) ([]Record, error)
}
