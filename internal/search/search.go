// Package search serves the three query paths: semantic retrieval over the
// vector index, structured metric search, and read-only SQL analysis.
package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
	"github.com/zacharyvunguyen/FinSight-AI/internal/embed"
	"github.com/zacharyvunguyen/FinSight-AI/internal/store"
	"github.com/zacharyvunguyen/FinSight-AI/internal/telemetry"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector"
)

// DefaultTopK bounds semantic queries that do not specify a result count.
const DefaultTopK = 5

// DocumentStore is the warehouse surface the search service needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, contentHash string) (document.Document, bool, error)
	SearchByMetric(ctx context.Context, metric string, minValue, maxValue *float64) ([]store.MetricHit, error)
	ReadOnlyQuery(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// SemanticMatch is one hydrated semantic search result. Document fields come
// from the warehouse row the match dereferences to.
type SemanticMatch struct {
	VectorID    string          `json:"vector_id"`
	Score       float64         `json:"score"`
	ContentHash string          `json:"content_hash"`
	FileName    string          `json:"file_name"`
	SectionType string          `json:"section_type,omitempty"`
	Snippet     string          `json:"snippet,omitempty"`
	Metadata    vector.Metadata `json:"metadata,omitempty"`
}

type Service struct {
	embedder embed.Embedder
	index    vector.Index
	docs     DocumentStore
	metrics  *telemetry.Metrics
	logger   *log.Logger
}

func NewService(embedder embed.Embedder, index vector.Index, docs DocumentStore,
	metrics *telemetry.Metrics, logger *log.Logger) (*Service, error) {
	if embedder == nil || index == nil || docs == nil {
		return nil, fmt.Errorf("embedder, index, and document store are required")
	}
	if metrics == nil {
		metrics = telemetry.New()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Service{embedder: embedder, index: index, docs: docs, metrics: metrics, logger: logger}, nil
}

// Semantic embeds the query and returns the nearest chunks, hydrated with
// their warehouse documents. Matches whose document no longer exists are
// dropped and counted rather than surfaced as partial results.
func (s *Service) Semantic(ctx context.Context, query string, topK int) ([]SemanticMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	s.metrics.SearchQueries.WithLabelValues("semantic").Inc()

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.index.Query(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]SemanticMatch, 0, len(matches))
	orphans := 0
	for _, match := range matches {
		hash := match.Metadata.ContentHash()
		if hash == "" {
			orphans++
			continue
		}
		doc, ok, err := s.docs.GetDocument(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("hydrate match %s: %w", match.ID, err)
		}
		if !ok {
			orphans++
			continue
		}
		results = append(results, SemanticMatch{
			VectorID:    match.ID,
			Score:       match.Score,
			ContentHash: hash,
			FileName:    doc.FileName,
			SectionType: metadataString(match.Metadata, "section_type"),
			Snippet:     metadataString(match.Metadata, "start_text"),
			Metadata:    match.Metadata,
		})
	}
	if orphans > 0 {
		s.metrics.OrphanMatchesDropped.Add(float64(orphans))
		s.logger.Printf("dropped %d orphan matches for query %q", orphans, query)
	}
	return results, nil
}

// ByMetric finds documents mentioning a currency-styled metric, optionally
// bounded by value.
func (s *Service) ByMetric(ctx context.Context, metric string, minValue, maxValue *float64) ([]store.MetricHit, error) {
	s.metrics.SearchQueries.WithLabelValues("financial").Inc()
	return s.docs.SearchByMetric(ctx, metric, minValue, maxValue)
}

// SQLAnalysis runs an operator-supplied SELECT against the warehouse. The
// read-only guard runs here so rejection happens before the statement
// reaches a connection.
func (s *Service) SQLAnalysis(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if err := store.ValidateReadOnly(query); err != nil {
		return nil, err
	}
	s.metrics.SearchQueries.WithLabelValues("sql").Inc()
	return s.docs.ReadOnlyQuery(ctx, query)
}

func metadataString(m vector.Metadata, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
