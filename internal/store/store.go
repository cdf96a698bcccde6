// Package store is the analytical warehouse adapter backed by Postgres. It
// owns full document records for hydration and the structured metric query
// path.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
)

// ErrInvalidQuery marks statements rejected before reaching the warehouse.
var ErrInvalidQuery = errors.New("invalid query")

// metricNamePattern restricts metric names to word-like tokens. The metric
// name is spliced into a regex parameter, so anything else is rejected.
var metricNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]*$`)

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// UpsertDocument writes a document record keyed by content hash. The upsert
// is idempotent: a concurrent double-ingest of the same bytes converges on
// one row.
func (s *Store) UpsertDocument(ctx context.Context, doc document.Document) error {
	if doc.ContentHash == "" {
		return fmt.Errorf("content_hash required")
	}
	if doc.ExtractionStatus == "" {
		doc.ExtractionStatus = document.StatusPending
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (content_hash, file_name, byte_size, content_type, storage_path, full_text, extraction_status, job_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (content_hash) DO UPDATE SET
  file_name = EXCLUDED.file_name,
  byte_size = EXCLUDED.byte_size,
  content_type = EXCLUDED.content_type,
  storage_path = EXCLUDED.storage_path,
  full_text = EXCLUDED.full_text,
  extraction_status = EXCLUDED.extraction_status,
  job_id = EXCLUDED.job_id;
`, doc.ContentHash, doc.FileName, doc.ByteSize, doc.ContentType, doc.StoragePath,
		nullString(doc.FullText), string(doc.ExtractionStatus), doc.JobID)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetDocument fetches a document by content hash. The second return is false
// when no row exists.
func (s *Store) GetDocument(ctx context.Context, contentHash string) (document.Document, bool, error) {
	var (
		doc      document.Document
		fullText sql.NullString
		status   string
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT content_hash, file_name, byte_size, content_type, storage_path, full_text, extraction_status, job_id, created_at
FROM documents
WHERE content_hash = $1
`, contentHash).Scan(&doc.ContentHash, &doc.FileName, &doc.ByteSize, &doc.ContentType,
		&doc.StoragePath, &fullText, &status, &doc.JobID, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, false, nil
	}
	if err != nil {
		return document.Document{}, false, fmt.Errorf("get document: %w", err)
	}
	doc.FullText = fullText.String
	doc.ExtractionStatus = document.Status(status)
	return doc, true, nil
}

// MetricHit is one document matched by a metric search.
type MetricHit struct {
	ContentHash string    `json:"content_hash"`
	FileName    string    `json:"file_name"`
	FullText    string    `json:"full_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchByMetric matches documents whose text contains a currency-style
// mention of the metric name, optionally bounded by the numeric value
// extracted from that mention. Only the metric name and two optional bounds
// cross this boundary; caller text is never spliced into the statement.
func (s *Store) SearchByMetric(ctx context.Context, metric string, minValue, maxValue *float64) ([]MetricHit, error) {
	metric = strings.TrimSpace(metric)
	if !metricNamePattern.MatchString(metric) {
		return nil, fmt.Errorf("%w: metric name %q", ErrInvalidQuery, metric)
	}

	containsPattern := `\$` + metric + `\s*[0-9,.]+[MBK]?`
	extractPattern := `\$` + metric + `\s*([0-9,.]+)`

	query := `
SELECT content_hash, file_name, full_text, created_at
FROM documents
WHERE full_text ~* $1`
	args := []interface{}{containsPattern}
	argn := 2
	if minValue != nil {
		query += fmt.Sprintf(`
  AND CAST(REPLACE(substring(full_text from $%d), ',', '') AS DOUBLE PRECISION) >= $%d`, argn, argn+1)
		args = append(args, extractPattern, *minValue)
		argn += 2
	}
	if maxValue != nil {
		query += fmt.Sprintf(`
  AND CAST(REPLACE(substring(full_text from $%d), ',', '') AS DOUBLE PRECISION) <= $%d`, argn, argn+1)
		args = append(args, extractPattern, *maxValue)
	}
	query += `
ORDER BY created_at DESC;`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metric search: %w", err)
	}
	defer rows.Close()

	var hits []MetricHit
	for rows.Next() {
		var (
			hit      MetricHit
			fullText sql.NullString
		)
		if err := rows.Scan(&hit.ContentHash, &hit.FileName, &fullText, &hit.CreatedAt); err != nil {
			return nil, err
		}
		hit.FullText = fullText.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ValidateReadOnly rejects any statement that does not begin with SELECT,
// case-insensitive and tolerant of leading whitespace.
func ValidateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrInvalidQuery)
	}
	first := strings.Fields(trimmed)[0]
	if !strings.EqualFold(first, "SELECT") {
		return fmt.Errorf("%w: only SELECT statements are allowed (got %q)", ErrInvalidQuery, first)
	}
	return nil
}

// ReadOnlyQuery executes a validated SELECT statement and returns generic
// rows. The guard runs here as well as in the search service so the store
// never forwards a mutating statement regardless of caller.
func (s *Store) ReadOnlyQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
