// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsFetchedTotal  *prometheus.CounterVec
	songsParsedTotal   prometheus.Counter
	parseFailuresTotal *prometheus.CounterVec
	cyclesTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomt_posts_fetched_total",
				Help: "Total number of posts fetched, labeled by subreddit and status.",
			},
			[]string{"subreddit", "status"},
		)

		songsParsedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tomt_songs_parsed_total",
				Help: "Total number of songs successfully extracted and stored.",
			},
		)

		parseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomt_parse_failures_total",
				Help: "Total number of extraction failures, labeled by kind.",
			},
			[]string{"kind"},
		)

		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomt_discovery_cycles_total",
				Help: "Total number of discovery cycles run, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// RecordPostFetched increments the fetched-post counter.
func RecordPostFetched(subreddit, status string) {
	if postsFetchedTotal == nil {
		return
	}
	postsFetchedTotal.WithLabelValues(subreddit, status).Inc()
}

// RecordSongParsed increments the parsed-song counter.
func RecordSongParsed() {
	if songsParsedTotal == nil {
		return
	}
	songsParsedTotal.Inc()
}

// RecordParseFailure increments the failure counter for the given kind.
// Kind is "no_solution" for content ambiguity or "model_unavailable" for
// infrastructure failures.
func RecordParseFailure(kind string) {
	if parseFailuresTotal == nil {
		return
	}
	parseFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordCycle increments the cycle counter with outcome "success" or "error".
func RecordCycle(outcome string) {
	if cyclesTotal == nil {
		return
	}
	cyclesTotal.WithLabelValues(outcome).Inc()
}
