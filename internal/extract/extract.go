// Package extract drives an external asynchronous text-extraction job from
// submission to completion. The state machine owns polling, retry on
// transient transport failure, and the wall-clock budget; every failure mode
// is normalized into one result shape so callers have a single
// representation to test against.
package extract

import (
	"context"
	"io"
	"time"
)

// JobStatus is the status reported by the extraction provider for a job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Provider is the remote extraction service contract.
type Provider interface {
	// Submit uploads the raw document and returns the provider's job id.
	Submit(ctx context.Context, r io.Reader, filename string) (string, error)
	// Status reports the job's current state. The second return carries the
	// provider's error message when the job failed.
	Status(ctx context.Context, jobID string) (JobStatus, string, error)
	// FetchResult retrieves the completed job's result document.
	FetchResult(ctx context.Context, jobID string) (map[string]interface{}, error)
}

// Status is the terminal outcome of one extraction attempt.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// Metadata describes how an extraction attempt ended.
type Metadata struct {
	Status         Status    `json:"status"`
	JobID          string    `json:"job_id,omitempty"`
	ExtractionTime time.Time `json:"extraction_time"`
	Error          string    `json:"error,omitempty"`
}

// Result is the machine's output contract. Content is nil unless Status is
// success.
type Result struct {
	Content  *string  `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Succeeded reports whether the attempt produced content.
func (r Result) Succeeded() bool {
	return r.Metadata.Status == StatusSuccess && r.Content != nil
}

// Clock abstracts time so tests can simulate polling without real waiting.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
