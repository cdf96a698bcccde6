// Package metastore is the fast metadata store backed by Redis. It answers
// the dedup question on the hot path and owns the atomic create that closes
// the double-ingest race.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
)

const docKeyPrefix = "finsight:doc:"

// ErrDuplicate is returned by Create when a record for the content hash
// already exists.
var ErrDuplicate = errors.New("document already registered")

// ErrNotFound is returned by Get when no record exists for a content hash.
var ErrNotFound = errors.New("document not found")

// Record is the lightweight metadata entry kept in Redis. The warehouse
// holds the full document; this record exists for fast dedup lookups.
type Record struct {
	ContentHash      string          `json:"content_hash"`
	FileName         string          `json:"file_name"`
	ByteSize         int64           `json:"byte_size"`
	ContentType      string          `json:"content_type"`
	StoragePath      string          `json:"storage_path"`
	ExtractionStatus document.Status `json:"extraction_status"`
	JobID            string          `json:"job_id,omitempty"`
	VectorIDs        []string        `json:"vector_ids,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Conn opens a Redis client and verifies the connection.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type Metastore struct {
	client *redis.Client
}

func New(client *redis.Client) *Metastore {
	return &Metastore{client: client}
}

// Get fetches the metadata record for a content hash. Returns ErrNotFound
// when absent.
func (m *Metastore) Get(ctx context.Context, contentHash string) (Record, error) {
	val, err := m.client.Get(ctx, docKeyPrefix+contentHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get document record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("decode document record: %w", err)
	}
	return rec, nil
}

// Create registers a record only if none exists for its content hash. The
// check and the write are one SETNX, so two concurrent ingests of the same
// bytes cannot both win.
func (m *Metastore) Create(ctx context.Context, rec Record) error {
	if rec.ContentHash == "" {
		return fmt.Errorf("content_hash required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode document record: %w", err)
	}
	ok, err := m.client.SetNX(ctx, docKeyPrefix+rec.ContentHash, data, 0).Result()
	if err != nil {
		return fmt.Errorf("create document record: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// Update overwrites the record for its content hash. Used after extraction
// and indexing settle the final status.
func (m *Metastore) Update(ctx context.Context, rec Record) error {
	if rec.ContentHash == "" {
		return fmt.Errorf("content_hash required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode document record: %w", err)
	}
	if err := m.client.Set(ctx, docKeyPrefix+rec.ContentHash, data, 0).Err(); err != nil {
		return fmt.Errorf("update document record: %w", err)
	}
	return nil
}

// Delete removes the record for a content hash.
func (m *Metastore) Delete(ctx context.Context, contentHash string) error {
	if err := m.client.Del(ctx, docKeyPrefix+contentHash).Err(); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	return nil
}
