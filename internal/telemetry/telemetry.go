// Package telemetry exposes Prometheus counters for the ingestion and
// search pipelines.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. All counters register on a private
// registry so tests can construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIngested    prometheus.Counter
	DocumentsDuplicate   prometheus.Counter
	DocumentsFailed      prometheus.Counter
	ExtractionTimeouts   prometheus.Counter
	ChunksIndexed        prometheus.Counter
	ChunksFailed         prometheus.Counter
	SearchQueries        *prometheus.CounterVec
	OrphanMatchesDropped prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		DocumentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_documents_ingested_total",
			Help: "Documents accepted and fully processed.",
		}),
		DocumentsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_documents_duplicate_total",
			Help: "Uploads rejected because the content hash already exists.",
		}),
		DocumentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_documents_failed_total",
			Help: "Documents whose extraction ended in failure.",
		}),
		ExtractionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_extraction_timeouts_total",
			Help: "Extractions abandoned after exhausting the polling budget.",
		}),
		ChunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_chunks_indexed_total",
			Help: "Chunks embedded and upserted into the vector index.",
		}),
		ChunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_chunks_failed_total",
			Help: "Chunks that failed embedding or upsert.",
		}),
		SearchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finsight_search_queries_total",
			Help: "Search queries served, by kind.",
		}, []string{"kind"}),
		OrphanMatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsight_orphan_matches_dropped_total",
			Help: "Vector matches dropped because no warehouse record backs them.",
		}),
	}
	reg.MustRegister(
		m.DocumentsIngested,
		m.DocumentsDuplicate,
		m.DocumentsFailed,
		m.ExtractionTimeouts,
		m.ChunksIndexed,
		m.ChunksFailed,
		m.SearchQueries,
		m.OrphanMatchesDropped,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
