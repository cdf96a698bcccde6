package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

// Defaults mirror the provider's service limits: poll every 10s within a
// 300s budget, backing off 5s after a transient transport failure.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultRetryBackoff = 5 * time.Second
	DefaultBudget       = 300 * time.Second
)

// contentFields are the response keys accepted as the extracted text, in
// priority order. First match wins.
var contentFields = []string{"markdown", "text", "content"}

// ErrNilProvider is returned by NewMachine when no provider is supplied.
var ErrNilProvider = errors.New("extraction provider required")

// Config tunes the state machine.
type Config struct {
	PollInterval time.Duration
	RetryBackoff time.Duration
	Budget       time.Duration
	// KnownJobID, when set, is tried with a status+fetch before submitting a
	// new job. Purely an optimization; a failed attempt falls through to a
	// fresh submission.
	KnownJobID string
	Clock      Clock
}

// Machine runs one extraction attempt per Extract call:
// Submitted -> Polling -> {Completed, Failed, TimedOut}.
type Machine struct {
	provider     Provider
	clock        Clock
	pollInterval time.Duration
	retryBackoff time.Duration
	budget       time.Duration
	knownJobID   string
	logger       *log.Logger
}

// NewMachine builds an extraction state machine. Zero config fields take the
// package defaults.
func NewMachine(provider Provider, cfg Config, logger *log.Logger) (*Machine, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Machine{
		provider:     provider,
		clock:        cfg.Clock,
		pollInterval: cfg.PollInterval,
		retryBackoff: cfg.RetryBackoff,
		budget:       cfg.Budget,
		knownJobID:   cfg.KnownJobID,
		logger:       logger,
	}, nil
}

// Extract submits the document and drives the job to a terminal state. It
// never returns an error: provider failures, timeouts, content-shape
// problems and cancellation are all folded into the Result.
func (m *Machine) Extract(ctx context.Context, r io.Reader, filename string) Result {
	if m.knownJobID != "" {
		if res, ok := m.fetchKnown(ctx, m.knownJobID); ok {
			return res
		}
	}

	jobID, err := m.provider.Submit(ctx, r, filename)
	if err != nil {
		return m.failed("", fmt.Sprintf("submit: %v", err))
	}
	m.logger.Printf("submitted job %s for %s", jobID, filename)

	start := m.clock.Now()
	completed := false
	for m.clock.Now().Sub(start) < m.budget {
		status, providerErr, err := m.provider.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return m.failed(jobID, fmt.Sprintf("canceled: %v", ctx.Err()))
			}
			// Transient transport failure: back off and retry the same poll
			// without resetting the budget.
			m.logger.Printf("job %s: poll failed, retrying: %v", jobID, err)
			if serr := m.clock.Sleep(ctx, m.retryBackoff); serr != nil {
				return m.failed(jobID, fmt.Sprintf("canceled: %v", serr))
			}
			continue
		}
		if status == JobCompleted {
			completed = true
			break
		}
		if status == JobFailed {
			return m.failed(jobID, fmt.Sprintf("processing failed: %s", providerErr))
		}
		if serr := m.clock.Sleep(ctx, m.pollInterval); serr != nil {
			return m.failed(jobID, fmt.Sprintf("canceled: %v", serr))
		}
	}
	if !completed {
		return Result{Metadata: Metadata{
			Status:         StatusTimedOut,
			JobID:          jobID,
			ExtractionTime: m.clock.Now(),
			Error:          fmt.Sprintf("processing timeout after %s", m.budget),
		}}
	}

	content, err := m.fetchContent(ctx, jobID)
	if err != nil {
		return m.failed(jobID, err.Error())
	}
	return Result{
		Content: &content,
		Metadata: Metadata{
			Status:         StatusSuccess,
			JobID:          jobID,
			ExtractionTime: m.clock.Now(),
		},
	}
}

// fetchKnown tries to reuse a previously completed job. It must never return
// stale content silently on error paths; any failure falls back to a fresh
// submission.
func (m *Machine) fetchKnown(ctx context.Context, jobID string) (Result, bool) {
	status, _, err := m.provider.Status(ctx, jobID)
	if err != nil || status != JobCompleted {
		return Result{}, false
	}
	content, err := m.fetchContent(ctx, jobID)
	if err != nil {
		m.logger.Printf("known job %s: %v", jobID, err)
		return Result{}, false
	}
	m.logger.Printf("reusing completed job %s", jobID)
	return Result{
		Content: &content,
		Metadata: Metadata{
			Status:         StatusSuccess,
			JobID:          jobID,
			ExtractionTime: m.clock.Now(),
		},
	}, true
}

// fetchContent retrieves the result document and pulls out the extracted
// text, accepting the known field encodings in priority order.
func (m *Machine) fetchContent(ctx context.Context, jobID string) (string, error) {
	result, err := m.provider.FetchResult(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("fetch result: %w", err)
	}
	for _, field := range contentFields {
		if v, ok := result[field]; ok {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("no content field in result (looked for %v)", contentFields)
}

func (m *Machine) failed(jobID, msg string) Result {
	m.logger.Printf("extraction failed: %s", msg)
	return Result{Metadata: Metadata{
		Status:         StatusFailed,
		JobID:          jobID,
		ExtractionTime: m.clock.Now(),
		Error:          msg,
	}}
}
