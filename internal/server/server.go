// Package server exposes the ingestion and search pipelines over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zacharyvunguyen/FinSight-AI/internal/document"
	"github.com/zacharyvunguyen/FinSight-AI/internal/ingest"
	"github.com/zacharyvunguyen/FinSight-AI/internal/search"
	"github.com/zacharyvunguyen/FinSight-AI/internal/store"
	"github.com/zacharyvunguyen/FinSight-AI/internal/telemetry"
)

// Ingester runs the document pipeline for one upload.
type Ingester interface {
	Ingest(ctx context.Context, fileName, contentType string, r io.ReadSeeker) (ingest.Result, error)
}

// Searcher serves the three query paths.
type Searcher interface {
	Semantic(ctx context.Context, query string, topK int) ([]search.SemanticMatch, error)
	ByMetric(ctx context.Context, metric string, minValue, maxValue *float64) ([]store.MetricHit, error)
	SQLAnalysis(ctx context.Context, query string) ([]map[string]interface{}, error)
}

// DocumentGetter reads stored document records.
type DocumentGetter interface {
	GetDocument(ctx context.Context, contentHash string) (document.Document, bool, error)
}

// BlobStore serves stored documents behind signed URLs.
type BlobStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	SignedURL(path string, expiry time.Duration) (string, error)
	Verify(path string, expires int64, sig string) error
}

// Server holds the HTTP dependencies and registers routes on an echo
// instance.
type Server struct {
	ingester Ingester
	searcher Searcher
	docs     DocumentGetter
	blobs    BlobStore
	urlTTL   time.Duration
	metrics  *telemetry.Metrics
	logger   *log.Logger
}

func New(ingester Ingester, searcher Searcher, docs DocumentGetter, blobs BlobStore, urlTTL time.Duration, metrics *telemetry.Metrics) (*Server, error) {
	if ingester == nil || searcher == nil || docs == nil || blobs == nil {
		return nil, fmt.Errorf("ingester, searcher, document store, and blob store are required")
	}
	if urlTTL <= 0 {
		urlTTL = 30 * time.Minute
	}
	if metrics == nil {
		metrics = telemetry.New()
	}
	return &Server{
		ingester: ingester,
		searcher: searcher,
		docs:     docs,
		blobs:    blobs,
		urlTTL:   urlTTL,
		metrics:  metrics,
		logger:   log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}, nil
}

// Echo builds the configured echo instance with all routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group("/api")
	api.POST("/documents/upload", s.upload)
	api.GET("/documents/:hash", s.getDocument)
	api.GET("/documents/:hash/url", s.documentURL)
	api.POST("/search/semantic", s.semanticSearch)
	api.POST("/search/financial", s.financialSearch)
	api.POST("/search/sql", s.sqlAnalysis)

	e.GET("/files/*", s.serveBlob)

	return e
}
