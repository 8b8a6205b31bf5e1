package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileLedgerReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madd_reconcile_ledger_reads_total",
		Help: "Number of per-contract ledger reads issued during reconciliation.",
	})
	reconcileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madd_reconcile_cache_hits_total",
		Help: "Number of contracts served verbatim from the terminal cache.",
	})
	replenishSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "madd_replenish_swaps_total",
		Help: "Number of automatic fee-currency top-up swaps executed.",
	})
)
