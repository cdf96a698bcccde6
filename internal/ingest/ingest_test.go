package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacharyvunguyen/FinSight-AI/internal/blob"
	"github.com/zacharyvunguyen/FinSight-AI/internal/chunk"
	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
	"github.com/zacharyvunguyen/FinSight-AI/internal/extract"
	"github.com/zacharyvunguyen/FinSight-AI/internal/fingerprint"
	"github.com/zacharyvunguyen/FinSight-AI/internal/index"
	"github.com/zacharyvunguyen/FinSight-AI/internal/metastore"
	"github.com/zacharyvunguyen/FinSight-AI/internal/vector"
)

type fakeMeta struct {
	records map[string]metastore.Record
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{records: map[string]metastore.Record{}}
}

func (f *fakeMeta) Get(_ context.Context, hash string) (metastore.Record, error) {
	rec, ok := f.records[hash]
	if !ok {
		return metastore.Record{}, metastore.ErrNotFound
	}
	return rec, nil
}

func (f *fakeMeta) Create(_ context.Context, rec metastore.Record) error {
	if _, ok := f.records[rec.ContentHash]; ok {
		return metastore.ErrDuplicate
	}
	f.records[rec.ContentHash] = rec
	return nil
}

func (f *fakeMeta) Update(_ context.Context, rec metastore.Record) error {
	f.records[rec.ContentHash] = rec
	return nil
}

func (f *fakeMeta) Delete(_ context.Context, hash string) error {
	delete(f.records, hash)
	return nil
}

type fakeWarehouse struct {
	docs      map[string]document.Document
	upsertErr error
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{docs: map[string]document.Document{}}
}

func (f *fakeWarehouse) UpsertDocument(_ context.Context, doc document.Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs[doc.ContentHash] = doc
	return nil
}

type fakeBlobs struct {
	objects map[string][]byte
	putErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(_ context.Context, hash, fileName, contentType string, r io.Reader) (blob.Object, error) {
	if f.putErr != nil {
		return blob.Object{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Object{}, err
	}
	path := "uploads/test/" + hash + "/" + fileName
	f.objects[path] = data
	return blob.Object{Path: path, ByteSize: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeBlobs) Open(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeBlobs) SignedURL(path string, _ time.Duration) (string, error) {
	return "http://blobs.local/" + path, nil
}

type fakeExtractor struct {
	result extract.Result
}

func (f *fakeExtractor) Extract(_ context.Context, r io.Reader, _ string) extract.Result {
	_, _ = io.ReadAll(r)
	return f.result
}

func successExtraction(content string) extract.Result {
	return extract.Result{
		Content: &content,
		Metadata: extract.Metadata{
			Status: extract.StatusSuccess,
			JobID:  "job-1",
		},
	}
}

type fakeIndexer struct {
	report   index.Report
	err      error
	gotMeta  vector.Metadata
	gotCount int
}

func (f *fakeIndexer) Index(_ context.Context, chunks []chunk.Chunk, docMeta vector.Metadata) (index.Report, error) {
	f.gotMeta = docMeta
	f.gotCount = len(chunks)
	if f.err != nil {
		return index.Report{}, f.err
	}
	if len(f.report.VectorIDs) == 0 && f.err == nil {
		ids := make([]string, len(chunks))
		for i := range chunks {
			ids[i] = fmt.Sprintf("vec_chunk_%d", i)
		}
		return index.Report{VectorIDs: ids}, nil
	}
	return f.report, nil
}

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

type env struct {
	meta      *fakeMeta
	warehouse *fakeWarehouse
	blobs     *fakeBlobs
	extractor *fakeExtractor
	indexer   *fakeIndexer
	pipeline  *Pipeline
}

func newEnv(t *testing.T, res extract.Result) *env {
	t.Helper()
	e := &env{
		meta:      newFakeMeta(),
		warehouse: newFakeWarehouse(),
		blobs:     newFakeBlobs(),
		extractor: &fakeExtractor{result: res},
		indexer:   &fakeIndexer{},
	}
	p, err := NewPipeline(e.meta, e.warehouse, e.blobs, e.extractor,
		chunk.NewChunker(1000, wordTokenizer{}), e.indexer, nil,
		log.New(io.Discard, "", 0))
	require.NoError(t, err)
	e.pipeline = p
	return e
}

func TestIngestEndToEnd(t *testing.T) {
	text := "BALANCE SHEET\nAssets $1,000,000\n\nCASH FLOW\nNet $500K"
	e := newEnv(t, successExtraction(text))

	res, err := e.pipeline.Ingest(context.Background(), "q4.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeIngested, res.Outcome)
	assert.NotEmpty(t, res.ContentHash)
	assert.Equal(t, 2, res.ChunkCount)
	assert.Len(t, res.VectorIDs, 2)
	assert.Zero(t, res.FailedChunks)

	// Blob landed under the content hash.
	assert.Contains(t, res.StoragePath, res.ContentHash)

	// Warehouse row carries full text and terminal status.
	doc := e.warehouse.docs[res.ContentHash]
	assert.Equal(t, text, doc.FullText)
	assert.Equal(t, document.StatusSuccess, doc.ExtractionStatus)
	assert.Equal(t, "job-1", doc.JobID)

	// Metastore record settled with vector ids.
	rec := e.meta.records[res.ContentHash]
	assert.Equal(t, document.StatusSuccess, rec.ExtractionStatus)
	assert.Equal(t, res.VectorIDs, rec.VectorIDs)

	// Indexer saw the document-level metadata.
	assert.Equal(t, res.ContentHash, e.indexer.gotMeta.ContentHash())
	assert.Equal(t, "q4.pdf", e.indexer.gotMeta["file_name"])
}

func TestIngestDuplicate(t *testing.T) {
	e := newEnv(t, successExtraction("BALANCE SHEET\nAssets $1"))
	ctx := context.Background()

	first, err := e.pipeline.Ingest(ctx, "q4.pdf", "application/pdf", strings.NewReader("same bytes"))
	require.NoError(t, err)
	require.Equal(t, OutcomeIngested, first.Outcome)

	second, err := e.pipeline.Ingest(ctx, "renamed.pdf", "application/pdf", strings.NewReader("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	require.NotNil(t, second.Existing)
	assert.Equal(t, "q4.pdf", second.Existing.FileName)

	// No second blob, no second warehouse write for the dup path.
	assert.Len(t, e.blobs.objects, 1)
}

func TestIngestExtractionFailed(t *testing.T) {
	failed := extract.Result{Metadata: extract.Metadata{
		Status: extract.StatusFailed,
		JobID:  "job-1",
		Error:  "parse error",
	}}
	e := newEnv(t, failed)

	res, err := e.pipeline.Ingest(context.Background(), "broken.pdf", "application/pdf", strings.NewReader("bytes"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeExtractionFailed, res.Outcome)
	assert.Equal(t, "parse error", res.Extraction.Error)

	// The document is still recorded, with a failed status and no text.
	doc := e.warehouse.docs[res.ContentHash]
	assert.Equal(t, document.StatusFailed, doc.ExtractionStatus)
	assert.Empty(t, doc.FullText)

	// A re-upload of the same bytes dedups against the failed record.
	again, err := e.pipeline.Ingest(context.Background(), "broken.pdf", "application/pdf", strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, again.Outcome)
}

func TestIngestExtractionTimedOut(t *testing.T) {
	timedOut := extract.Result{Metadata: extract.Metadata{
		Status: extract.StatusTimedOut,
		JobID:  "job-1",
		Error:  "extraction timed out after 300s",
	}}
	e := newEnv(t, timedOut)

	res, err := e.pipeline.Ingest(context.Background(), "slow.pdf", "application/pdf", strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExtractionTimedOut, res.Outcome)
	assert.Equal(t, document.StatusFailed, e.warehouse.docs[res.ContentHash].ExtractionStatus)
}

// raceMeta reports not-found on the first Get so the pipeline proceeds to
// Create, which then finds the record already present. This models a
// concurrent upload of the same bytes winning between the lookup and the
// create.
type raceMeta struct {
	*fakeMeta
	firstGet bool
}

func (r *raceMeta) Get(ctx context.Context, hash string) (metastore.Record, error) {
	if !r.firstGet {
		r.firstGet = true
		return metastore.Record{}, metastore.ErrNotFound
	}
	return r.fakeMeta.Get(ctx, hash)
}

func TestIngestCreateRaceReturnsDuplicate(t *testing.T) {
	e := newEnv(t, successExtraction("text"))

	hash, err := fingerprint.Hash(strings.NewReader("race bytes"))
	require.NoError(t, err)
	e.meta.records[hash] = metastore.Record{ContentHash: hash, FileName: "winner.pdf"}

	meta := &raceMeta{fakeMeta: e.meta}
	p, err := NewPipeline(meta, e.warehouse, e.blobs, e.extractor,
		chunk.NewChunker(1000, wordTokenizer{}), e.indexer, nil,
		log.New(io.Discard, "", 0))
	require.NoError(t, err)

	res, err := p.Ingest(context.Background(), "loser.pdf", "application/pdf", strings.NewReader("race bytes"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	require.NotNil(t, res.Existing)
	assert.Equal(t, "winner.pdf", res.Existing.FileName)
}

func TestIngestBlobFailureReleasesRecord(t *testing.T) {
	e := newEnv(t, successExtraction("text"))
	e.blobs.putErr = errors.New("disk full")

	_, err := e.pipeline.Ingest(context.Background(), "q4.pdf", "application/pdf", strings.NewReader("bytes"))
	require.Error(t, err)

	// The dedup record was released so a retry is not refused.
	assert.Empty(t, e.meta.records)
}

func TestIngestIndexerFailureReleasesRecord(t *testing.T) {
	e := newEnv(t, successExtraction("BALANCE SHEET\nAssets $1"))
	e.indexer.err = errors.New("vector index down")

	_, err := e.pipeline.Ingest(context.Background(), "q4.pdf", "application/pdf", strings.NewReader("bytes"))
	require.Error(t, err)
	assert.Empty(t, e.meta.records)
}

func TestIngestPartialIndexingReported(t *testing.T) {
	e := newEnv(t, successExtraction("BALANCE SHEET\nAssets $1\n\nCASH FLOW\nNet $2"))
	e.indexer.report = index.Report{
		VectorIDs: []string{"vec_chunk_0"},
		Failed:    []index.ChunkFailure{{ChunkIndex: 1, Reason: "embed failed"}},
	}

	res, err := e.pipeline.Ingest(context.Background(), "q4.pdf", "application/pdf", strings.NewReader("bytes"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeIngested, res.Outcome)
	assert.Equal(t, 1, res.FailedChunks)
	assert.Equal(t, []string{"vec_chunk_0"}, res.VectorIDs)
}
