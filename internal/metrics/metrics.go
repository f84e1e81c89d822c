// Package metrics carries the server's Prometheus instrumentation, in the
// style of the retrieval pack's own long-running-daemon metrics packages
// (cuemby-warren's pkg/metrics): package-level collectors registered once
// in init and a promhttp.Handler for the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mongosrv_connections_active",
		Help: "Number of currently open wire-protocol connections",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mongosrv_connections_total",
		Help: "Total number of accepted wire-protocol connections",
	})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongosrv_commands_total",
		Help: "Total number of dispatched commands by name and outcome",
	}, []string{"command", "outcome"})

	CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mongosrv_command_duration_seconds",
		Help:    "Command dispatch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	CursorsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mongosrv_cursors_open",
		Help: "Number of live server-side cursors",
	})

	CDCFilesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mongosrv_cdc_files_processed_total",
		Help: "Total CDC staged files processed, by outcome",
	}, []string{"outcome"})

	CDCRowsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mongosrv_cdc_rows_ingested_total",
		Help: "Total CDC rows inserted into the destination store",
	})

	CDCIngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mongosrv_cdc_file_ingest_duration_seconds",
		Help:    "Time taken to ingest a single staged CDC file",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		ConnectionsTotal,
		CommandsTotal,
		CommandDuration,
		CursorsOpen,
		CDCFilesProcessed,
		CDCRowsIngested,
		CDCIngestDuration,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
