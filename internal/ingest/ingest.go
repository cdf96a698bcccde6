// Package ingest orchestrates the document pipeline: fingerprint, dedup,
// blob storage, extraction, chunking, indexing, and warehouse persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zacharyvunguyen/FinSight-AI/internal/blob"
	"github.com/zacharyvunguyen/FinSight-AI/internal/chunk"
	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
	"github.com/zacharyvunguyen/FinSight-AI/internal/extract"
	"github.com/zacharyvunguyen/FinSight-AI/internal/fingerprint"
	"github.com/zacharyvunguyen/FinSight-AI/internal/index"
	"github.com/zacharyvunguyen/FinSight-AI/internal/metastore"
	"github.com/zacharyvunguyen/FinSight-AI/internal/telemetry"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector"
)

// Outcome names how an ingest attempt ended.
type Outcome string

const (
	// OutcomeIngested means the document was stored, extracted, chunked,
	// and indexed.
	OutcomeIngested Outcome = "ingested"
	// OutcomeDuplicate means the content hash was already registered; no
	// work was repeated.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeExtractionFailed means the provider reported failure; the
	// document is recorded with a failed status and nothing was indexed.
	OutcomeExtractionFailed Outcome = "extraction_failed"
	// OutcomeExtractionTimedOut means polling exhausted its budget.
	OutcomeExtractionTimedOut Outcome = "extraction_timed_out"
)

// Result reports one ingest attempt.
type Result struct {
	Outcome      Outcome           `json:"outcome"`
	ContentHash  string            `json:"content_hash"`
	StoragePath  string            `json:"storage_path,omitempty"`
	Extraction   extract.Metadata  `json:"extraction,omitempty"`
	ChunkCount   int               `json:"chunk_count"`
	VectorIDs    []string          `json:"vector_ids,omitempty"`
	FailedChunks int               `json:"failed_chunks,omitempty"`
	Existing     *metastore.Record `json:"existing,omitempty"`
}

// MetadataStore is the fast dedup store the pipeline consults before any
// expensive work.
type MetadataStore interface {
	Get(ctx context.Context, contentHash string) (metastore.Record, error)
	Create(ctx context.Context, rec metastore.Record) error
	Update(ctx context.Context, rec metastore.Record) error
	Delete(ctx context.Context, contentHash string) error
}

// Warehouse persists full document records.
type Warehouse interface {
	UpsertDocument(ctx context.Context, doc document.Document) error
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) extract.Result
}

// ChunkIndexer embeds chunks and writes them to the vector index.
type ChunkIndexer interface {
	Index(ctx context.Context, chunks []chunk.Chunk, docMeta vector.Metadata) (index.Report, error)
}

// Chunker splits extracted text.
type Chunker interface {
	Chunk(fullText string) []chunk.Chunk
}

// Pipeline wires the ingest collaborators together.
type Pipeline struct {
	meta      MetadataStore
	warehouse Warehouse
	blobs     blob.Store
	extractor Extractor
	chunker   Chunker
	indexer   ChunkIndexer
	metrics   *telemetry.Metrics
	logger    *log.Logger
}

func NewPipeline(meta MetadataStore, warehouse Warehouse, blobs blob.Store,
	extractor Extractor, chunker Chunker, indexer ChunkIndexer,
	metrics *telemetry.Metrics, logger *log.Logger) (*Pipeline, error) {
	if meta == nil || warehouse == nil || blobs == nil || extractor == nil || chunker == nil || indexer == nil {
		return nil, fmt.Errorf("all pipeline collaborators are required")
	}
	if metrics == nil {
		metrics = telemetry.New()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &Pipeline{
		meta:      meta,
		warehouse: warehouse,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Ingest runs the full pipeline for one uploaded document. Duplicate
// content and failed extraction are reported through Result, not error;
// error returns are reserved for infrastructure faults.
func (p *Pipeline) Ingest(ctx context.Context, fileName, contentType string, r io.ReadSeeker) (Result, error) {
	hash, err := fingerprint.Hash(r)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint: %w", err)
	}

	if existing, err := p.meta.Get(ctx, hash); err == nil {
		p.metrics.DocumentsDuplicate.Inc()
		p.logger.Printf("duplicate upload %s (hash %s)", fileName, hash)
		return Result{Outcome: OutcomeDuplicate, ContentHash: hash, Existing: &existing}, nil
	} else if !errors.Is(err, metastore.ErrNotFound) {
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	}

	rec := metastore.Record{
		ContentHash:      hash,
		FileName:         fileName,
		ContentType:      contentType,
		ExtractionStatus: document.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := p.meta.Create(ctx, rec); err != nil {
		if errors.Is(err, metastore.ErrDuplicate) {
			// Lost the race to a concurrent upload of the same bytes.
			p.metrics.DocumentsDuplicate.Inc()
			existing, gerr := p.meta.Get(ctx, hash)
			if gerr != nil {
				return Result{}, fmt.Errorf("dedup lookup after race: %w", gerr)
			}
			return Result{Outcome: OutcomeDuplicate, ContentHash: hash, Existing: &existing}, nil
		}
		return Result{}, fmt.Errorf("register document: %w", err)
	}

	obj, err := p.blobs.Put(ctx, hash, fileName, contentType, r)
	if err != nil {
		p.release(ctx, hash)
		return Result{}, fmt.Errorf("store blob: %w", err)
	}
	rec.StoragePath = obj.Path
	rec.ByteSize = obj.ByteSize

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		p.release(ctx, hash)
		return Result{}, fmt.Errorf("rewind for extraction: %w", err)
	}

	res := p.extractor.Extract(ctx, r, fileName)
	rec.JobID = res.Metadata.JobID
	if !res.Succeeded() {
		return p.recordFailure(ctx, rec, res, obj)
	}

	chunks := p.chunker.Chunk(*res.Content)
	report, err := p.indexer.Index(ctx, chunks, vector.Metadata{
		"content_hash": hash,
		"file_name":    fileName,
	})
	if err != nil {
		p.release(ctx, hash)
		return Result{}, fmt.Errorf("index chunks: %w", err)
	}
	p.metrics.ChunksIndexed.Add(float64(len(report.VectorIDs)))
	p.metrics.ChunksFailed.Add(float64(len(report.Failed)))
	if report.PartialFailure() {
		p.logger.Printf("document %s: %d of %d chunks failed indexing", hash, len(report.Failed), len(chunks))
	}

	doc := document.Document{
		ContentHash:      hash,
		FileName:         fileName,
		ByteSize:         obj.ByteSize,
		ContentType:      contentType,
		StoragePath:      obj.Path,
		FullText:         *res.Content,
		ExtractionStatus: document.StatusSuccess,
		JobID:            res.Metadata.JobID,
	}
	if err := p.warehouse.UpsertDocument(ctx, doc); err != nil {
		p.release(ctx, hash)
		return Result{}, fmt.Errorf("persist document: %w", err)
	}

	rec.ExtractionStatus = document.StatusSuccess
	rec.VectorIDs = report.VectorIDs
	if err := p.meta.Update(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("finalize document record: %w", err)
	}

	p.metrics.DocumentsIngested.Inc()
	p.logger.Printf("ingested %s (hash %s, %d chunks, %d vectors)", fileName, hash, len(chunks), len(report.VectorIDs))
	return Result{
		Outcome:      OutcomeIngested,
		ContentHash:  hash,
		StoragePath:  obj.Path,
		Extraction:   res.Metadata,
		ChunkCount:   len(chunks),
		VectorIDs:    report.VectorIDs,
		FailedChunks: len(report.Failed),
	}, nil
}

// recordFailure persists a document whose extraction did not produce
// content. The record survives with a terminal status so the upload is not
// silently lost and retries dedup correctly.
func (p *Pipeline) recordFailure(ctx context.Context, rec metastore.Record, res extract.Result, obj blob.Object) (Result, error) {
	outcome := OutcomeExtractionFailed
	if res.Metadata.Status == extract.StatusTimedOut {
		outcome = OutcomeExtractionTimedOut
		p.metrics.ExtractionTimeouts.Inc()
	}
	p.metrics.DocumentsFailed.Inc()
	p.logger.Printf("extraction %s for %s: %s", res.Metadata.Status, rec.ContentHash, res.Metadata.Error)

	doc := document.Document{
		ContentHash:      rec.ContentHash,
		FileName:         rec.FileName,
		ByteSize:         obj.ByteSize,
		ContentType:      rec.ContentType,
		StoragePath:      obj.Path,
		ExtractionStatus: document.StatusFailed,
		JobID:            res.Metadata.JobID,
	}
	if err := p.warehouse.UpsertDocument(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("persist failed document: %w", err)
	}
	rec.ExtractionStatus = document.StatusFailed
	if err := p.meta.Update(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("finalize failed document record: %w", err)
	}
	return Result{
		Outcome:     outcome,
		ContentHash: rec.ContentHash,
		StoragePath: obj.Path,
		Extraction:  res.Metadata,
	}, nil
}

// release drops the dedup record after an infrastructure fault so a retry
// of the same bytes is not refused as a duplicate.
func (p *Pipeline) release(ctx context.Context, hash string) {
	if err := p.meta.Delete(ctx, hash); err != nil {
		p.logger.Printf("release %s: %v", hash, err)
	}
}
