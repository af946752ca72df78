// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ChainReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_chain_reads_total",
			Help: "Contract read calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	ChainWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_chain_writes_total",
			Help: "Write transactions handed to the wallet, by method",
		},
		[]string{"method"},
	)

	TxOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_tx_outcomes_total",
			Help: "Terminal transaction outcomes observed by the status tracker",
		},
		[]string{"method", "outcome"},
	)

	TxWatching = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_tx_watching",
			Help: "Transactions currently awaiting confirmation",
		},
	)

	DirectoryRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_directory_refresh_duration_seconds",
			Help:    "Duration of a full event directory refresh",
			Buckets: prometheus.DefBuckets,
		},
	)

	DirectoryEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_directory_events",
			Help: "Event count seen by the last successful directory refresh",
		},
	)

	RefreshHints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_refresh_hints_total",
			Help: "Contract events received as realtime refresh hints",
		},
		[]string{"event"},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(ChainReads)
	prometheus.MustRegister(ChainWrites)
	prometheus.MustRegister(TxOutcomes)
	prometheus.MustRegister(TxWatching)
	prometheus.MustRegister(DirectoryRefreshDuration)
	prometheus.MustRegister(DirectoryEvents)
	prometheus.MustRegister(RefreshHints)
}
