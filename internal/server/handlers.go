package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zacharyvunguyen/FinSight-AI/internal/ingest"
	"github.com/zacharyvunguyen/FinSight-AI/internal/store"
)

// upload accepts a multipart document, runs the ingest pipeline, and maps
// the outcome to a status code. Duplicates answer 409 with the existing
// record; failed extraction still answers 200 because the document was
// recorded.
func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' required")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return echo.NewHTTPError(http.StatusBadRequest, "only .pdf uploads are accepted")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "upload is not seekable")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	res, err := s.ingester.Ingest(c.Request().Context(), fh.Filename, contentType, rs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch res.Outcome {
	case ingest.OutcomeDuplicate:
		return c.JSON(http.StatusConflict, res)
	case ingest.OutcomeIngested:
		return c.JSON(http.StatusCreated, res)
	default:
		return c.JSON(http.StatusOK, res)
	}
}

func (s *Server) getDocument(c echo.Context) error {
	hash := c.Param("hash")
	doc, ok, err := s.docs.GetDocument(c.Request().Context(), hash)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("document %s not found", hash))
	}
	return c.JSON(http.StatusOK, doc)
}

// documentURL issues a signed, expiring download URL for a stored document.
func (s *Server) documentURL(c echo.Context) error {
	hash := c.Param("hash")
	doc, ok, err := s.docs.GetDocument(c.Request().Context(), hash)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok || doc.StoragePath == "" {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("document %s not found", hash))
	}
	url, err := s.blobs.SignedURL(doc.StoragePath, s.urlTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"url":        url,
		"expires_in": int(s.urlTTL.Seconds()),
	})
}

// serveBlob streams a stored document after verifying the URL signature.
func (s *Server) serveBlob(c echo.Context) error {
	path := c.Param("*")
	expires, err := strconv.ParseInt(c.QueryParam("expires"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expires parameter required")
	}
	if err := s.blobs.Verify(path, expires, c.QueryParam("sig")); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "invalid or expired signature")
	}
	rc, err := s.blobs.Open(c.Request().Context(), path)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "object not found")
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, "application/octet-stream", rc)
}

type semanticRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) semanticSearch(c echo.Context) error {
	var req semanticRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	matches, err := s.searcher.Semantic(c.Request().Context(), req.Query, req.TopK)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"matches": matches,
	})
}

type financialRequest struct {
	Metric   string   `json:"metric"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
}

func (s *Server) financialSearch(c echo.Context) error {
	var req financialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hits, err := s.searcher.ByMetric(c.Request().Context(), req.Metric, req.MinValue, req.MaxValue)
	if err != nil {
		if errors.Is(err, store.ErrInvalidQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"metric": req.Metric,
		"hits":   hits,
	})
}

type sqlRequest struct {
	Query string `json:"query"`
}

func (s *Server) sqlAnalysis(c echo.Context) error {
	var req sqlRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rows, err := s.searcher.SQLAnalysis(c.Request().Context(), req.Query)
	if err != nil {
		if errors.Is(err, store.ErrInvalidQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rows": rows,
	})
}
