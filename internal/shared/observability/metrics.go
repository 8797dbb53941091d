package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codeintel_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	SyntaxCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codeintel_syntax_cache_requests_total",
		Help: "Syntax tree cache lookups by result (hit, miss, shared).",
	}, []string{"result"})

	SyntaxCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codeintel_syntax_cache_entries",
		Help: "Current number of parsed files held by the syntax tree cache.",
	})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codeintel_operation_seconds",
		Help:    "Time spent on engine operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codeintel_files_skipped_total",
		Help: "Files skipped during an operation, by error code.",
	}, []string{"reason"})

	RenameEditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeintel_rename_edits_total",
		Help: "Total number of identifier edits written by applied rename plans.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeintel_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
