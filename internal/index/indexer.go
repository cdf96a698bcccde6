// Package index generates an embedding per chunk and upserts (vector,
// metadata) pairs into the vector index. Indexing is best-effort per chunk:
// one failed upsert never aborts the rest of the document.
package index

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/zacharyvunguyen/FinSight-AI/internal/chunk"
	"github.com/zacharyvunguyen/FinSight-AI/internal/embed"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector"
)

// previewRunes bounds the start/end text previews stored in chunk metadata.
const previewRunes = 100

var (
	ErrNilEmbedder = errors.New("embedder required")
	ErrNilIndex    = errors.New("vector index required")
	ErrMissingHash = errors.New("document metadata must carry content_hash")
)

// ChunkFailure records one chunk that could not be embedded or stored.
type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Reason     string `json:"reason"`
}

// Report is the full accounting for one indexing run. VectorIDs holds the
// ids of successfully stored chunks in input order; callers needing exact
// coverage must also inspect Failed for gaps.
type Report struct {
	VectorIDs []string       `json:"vector_ids"`
	Failed    []ChunkFailure `json:"failed,omitempty"`
}

// FirstID returns the id of the first stored chunk, the conventional
// confirmation handle. Empty when nothing was stored.
func (r Report) FirstID() string {
	if len(r.VectorIDs) == 0 {
		return ""
	}
	return r.VectorIDs[0]
}

// PartialFailure reports whether any chunk was lost.
func (r Report) PartialFailure() bool { return len(r.Failed) > 0 }

// Indexer embeds chunks and stores them in the vector index.
type Indexer struct {
	embedder embed.Embedder
	index    vector.Index
	logger   *log.Logger
}

// NewIndexer wires an indexer to its collaborators.
func NewIndexer(embedder embed.Embedder, index vector.Index, logger *log.Logger) (*Indexer, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if index == nil {
		return nil, ErrNilIndex
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return &Indexer{embedder: embedder, index: index, logger: logger}, nil
}

// Index embeds and upserts each chunk in order. docMeta is merged into every
// chunk's metadata and must carry content_hash so index entries can always
// be dereferenced back to a warehouse row. Vector ids are freshly generated
// uuids suffixed with the chunk index, collision-free across documents.
func (ix *Indexer) Index(ctx context.Context, chunks []chunk.Chunk, docMeta vector.Metadata) (Report, error) {
	if docMeta.ContentHash() == "" {
		return Report{}, ErrMissingHash
	}

	var report Report
	for _, ch := range chunks {
		id := fmt.Sprintf("%s_chunk_%d", uuid.NewString(), ch.ChunkIndex)

		vecs, err := ix.embedder.Embed(ctx, []string{ch.Text})
		if err != nil {
			ix.fail(&report, ch.ChunkIndex, fmt.Sprintf("embed: %v", err))
			continue
		}
		if len(vecs) == 0 {
			ix.fail(&report, ch.ChunkIndex, "embed: provider returned no vectors")
			continue
		}

		rec := vector.Record{
			ID:       id,
			Values:   vecs[0],
			Metadata: chunkMetadata(ch, docMeta),
		}
		if err := ix.index.Upsert(ctx, rec); err != nil {
			ix.fail(&report, ch.ChunkIndex, fmt.Sprintf("upsert: %v", err))
			continue
		}
		report.VectorIDs = append(report.VectorIDs, id)
	}
	return report, nil
}

func (ix *Indexer) fail(report *Report, chunkIndex int, reason string) {
	ix.logger.Printf("chunk %d: %s", chunkIndex, reason)
	report.Failed = append(report.Failed, ChunkFailure{ChunkIndex: chunkIndex, Reason: reason})
}

// chunkMetadata merges the caller's document metadata with chunk-specific
// fields. Chunk fields overwrite document fields on collision so chunk_index
// is always trustworthy.
func chunkMetadata(ch chunk.Chunk, docMeta vector.Metadata) vector.Metadata {
	meta := make(vector.Metadata, len(docMeta)+8)
	for k, v := range docMeta {
		meta[k] = v
	}
	meta["chunk_index"] = ch.ChunkIndex
	meta["total_chunks"] = ch.TotalChunks
	meta["start_text"] = clipRunes(ch.Text, previewRunes, false)
	meta["end_text"] = clipRunes(ch.Text, previewRunes, true)
	meta["chunk_size"] = ch.TokenCount
	meta["section_type"] = string(ch.SectionType)
	meta["contains_table"] = ch.ContainsTable
	if len(ch.KeyMetrics.CurrencyAmounts) > 0 {
		meta["currency_amounts"] = ch.KeyMetrics.CurrencyAmounts
	}
	return meta
}

func clipRunes(s string, n int, fromEnd bool) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if fromEnd {
		return string(runes[len(runes)-n:])
	}
	return string(runes[:n])
}
