package llamaparse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacharyvunguyen/FinSight-AI/internal/extract"
)

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "report.pdf", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-abc"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	jobID, err := c.Submit(context.Background(), strings.NewReader("%PDF-1.4"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "job-abc", jobID)
}

func TestSubmitRejectedUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Submit(context.Background(), strings.NewReader("x"), "x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		provider string
		want     extract.JobStatus
	}{
		{"COMPLETED", extract.JobCompleted},
		{"SUCCESS", extract.JobCompleted},
		{"FAILED", extract.JobFailed},
		{"ERROR", extract.JobFailed},
		{"PENDING", extract.JobProcessing},
		{"PROCESSING", extract.JobProcessing},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/job/job-1", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": tc.provider, "error": "boom"})
		}))
		c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
		status, providerErr, err := c.Status(context.Background(), "job-1")
		srv.Close()
		require.NoError(t, err, "provider status %s", tc.provider)
		assert.Equal(t, tc.want, status, "provider status %s", tc.provider)
		if tc.want == extract.JobFailed {
			assert.Equal(t, "boom", providerErr)
		}
	}
}

func TestFetchResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/job/job-1/result/markdown", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"markdown": "# Annual Report"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	result, err := c.FetchResult(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "# Annual Report", result["markdown"])
}

var _ extract.Provider = (*Client)(nil)
