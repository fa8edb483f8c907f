package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lastIndexedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p2pledger_sync_last_indexed_block",
			Help: "Highest block number covered by the sync checkpoint",
		},
	)

	chainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "p2pledger_sync_chain_head_block",
			Help: "Latest observed block number at the configured finality",
		},
	)

	logsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2pledger_sync_logs_fetched_total",
			Help: "Total number of logs fetched from the RPC endpoint",
		},
	)

	rangesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "p2pledger_sync_ranges_fetched_total",
			Help: "Total number of block ranges fetched by mode",
		},
		[]string{"mode"},
	)

	rangeSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "p2pledger_sync_range_splits_total",
			Help: "Total number of block range splits caused by too many results",
		},
	)
)

func LastIndexedBlockSet(block uint64) {
	lastIndexedBlock.Set(float64(block))
}

func ChainHeadBlockSet(block uint64) {
	chainHeadBlock.Set(float64(block))
}

func LogsFetchedAdd(count int) {
	logsFetched.Add(float64(count))
}

func RangeFetchedInc(mode Mode) {
	rangesFetched.WithLabelValues(string(mode)).Inc()
}

func RangeSplitInc() {
	rangeSplits.Inc()
}
