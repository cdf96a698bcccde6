// Package llamaparse implements the extraction provider contract against a
// LlamaParse-style parsing API: multipart upload, job status polling, and
// markdown result retrieval.
package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/zacharyvunguyen/FinSight-AI/internal/extract"
	"github.com/zacharyvunguyen/FinSight-AI/internal/httpx"
)

// DefaultBaseURL is the hosted parsing endpoint.
const DefaultBaseURL = "https://api.cloud.llamaindex.ai/api/parsing"

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the parsing API. Retry across polls belongs to the
// extraction state machine, so requests here are single-shot.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	json    *httpx.Client
}

// NewClient builds a parsing API client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		json:    httpx.New(timeout, 0, 0),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"accept":        "application/json",
	}
}

// Submit uploads the document and returns the provider job id.
func (c *Client) Submit(ctx context.Context, r io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("multipart close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload: %s: %s", resp.Status, string(b))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload response missing job id")
	}
	return out.ID, nil
}

// Status maps the provider's job states onto the state machine's vocabulary.
// COMPLETED and SUCCESS are both accepted as completion.
func (c *Client) Status(ctx context.Context, jobID string) (extract.JobStatus, string, error) {
	var out struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	url := fmt.Sprintf("%s/job/%s", c.baseURL, jobID)
	if err := c.json.DoJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return "", "", fmt.Errorf("job status: %w", err)
	}
	switch strings.ToUpper(out.Status) {
	case "COMPLETED", "SUCCESS":
		return extract.JobCompleted, "", nil
	case "FAILED", "ERROR":
		return extract.JobFailed, out.Error, nil
	default:
		return extract.JobProcessing, "", nil
	}
}

// FetchResult retrieves the markdown result payload for a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	url := fmt.Sprintf("%s/job/%s/result/markdown", c.baseURL, jobID)
	if err := c.json.DoJSON(ctx, http.MethodGet, url, c.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("job result: %w", err)
	}
	return out, nil
}
