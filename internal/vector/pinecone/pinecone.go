// Package pinecone is a minimal REST client for a Pinecone-style vector
// index. It assumes cosine distance and a dimension fixed when the index was
// created.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zacharyvunguyen/FinSight-AI/internal/httpx"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector"
)

// Config configures the index client. BaseURL is the index host.
type Config struct {
	BaseURL   string
	APIKey    string
	Namespace string
	Timeout   time.Duration
	Retries   int
}

// Index implements vector.Index over the Pinecone data-plane REST API.
type Index struct {
	baseURL   string
	apiKey    string
	namespace string
	client    *httpx.Client
}

// NewIndex builds an index client.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("vector index base url required")
	}
	return &Index{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		client:    httpx.New(cfg.Timeout, cfg.Retries, 0),
	}, nil
}

func (ix *Index) headers() map[string]string {
	return map[string]string{"Api-Key": ix.apiKey}
}

// Upsert writes one record and verifies the index acknowledged it.
func (ix *Index) Upsert(ctx context.Context, rec vector.Record) error {
	if rec.ID == "" {
		return errors.New("vector id required")
	}
	if len(rec.Values) == 0 {
		return errors.New("vector values required")
	}
	body := map[string]interface{}{
		"vectors": []map[string]interface{}{{
			"id":       rec.ID,
			"values":   rec.Values,
			"metadata": rec.Metadata,
		}},
	}
	if ix.namespace != "" {
		body["namespace"] = ix.namespace
	}
	var out struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := ix.client.DoJSON(ctx, http.MethodPost, ix.baseURL+"/vectors/upsert", ix.headers(), body, &out); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if out.UpsertedCount != 1 {
		return fmt.Errorf("upsert not acknowledged (upsertedCount=%d)", out.UpsertedCount)
	}
	return nil
}

// Query returns the topK nearest neighbors with metadata.
func (ix *Index) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	if len(vec) == 0 {
		return nil, errors.New("query vector required")
	}
	if topK <= 0 {
		topK = 5
	}
	body := map[string]interface{}{
		"vector":          vec,
		"topK":            topK,
		"includeMetadata": true,
	}
	if ix.namespace != "" {
		body["namespace"] = ix.namespace
	}
	var out struct {
		Matches []struct {
			ID       string          `json:"id"`
			Score    float64         `json:"score"`
			Metadata vector.Metadata `json:"metadata"`
		} `json:"matches"`
	}
	if err := ix.client.DoJSON(ctx, http.MethodPost, ix.baseURL+"/query", ix.headers(), body, &out); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	matches := make([]vector.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, vector.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

// Fetch retrieves stored records by id.
func (ix *Index) Fetch(ctx context.Context, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	if ix.namespace != "" {
		q.Set("namespace", ix.namespace)
	}
	var out struct {
		Vectors map[string]struct {
			ID       string          `json:"id"`
			Values   []float32       `json:"values"`
			Metadata vector.Metadata `json:"metadata"`
		} `json:"vectors"`
	}
	if err := ix.client.DoJSON(ctx, http.MethodGet, ix.baseURL+"/vectors/fetch?"+q.Encode(), ix.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	records := make([]vector.Record, 0, len(out.Vectors))
	for _, id := range ids {
		if v, ok := out.Vectors[id]; ok {
			records = append(records, vector.Record{ID: v.ID, Values: v.Values, Metadata: v.Metadata})
		}
	}
	return records, nil
}

var _ vector.Index = (*Index)(nil)
