package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trader_calls_dispatched_total",
			Help: "Total number of contract calls broadcast",
		},
		[]string{"order_type", "stage"},
	)

	CallsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trader_calls_confirmed_total",
			Help: "Total number of contract calls confirmed on chain",
		},
		[]string{"order_type", "stage"},
	)

	CallsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trader_calls_failed_total",
			Help: "Total number of contract calls rejected or reverted",
		},
		[]string{"order_type", "stage"},
	)

	ConfirmationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dex_trader_confirmation_seconds",
			Help:    "Time from broadcast to a terminal receipt",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	ChainReadsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trader_chain_reads_failed_total",
			Help: "Total number of failed allowance, price and pool reads",
		},
		[]string{"method"},
	)
)

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
