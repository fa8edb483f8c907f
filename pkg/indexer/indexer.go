package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogBatch is a contiguous, block-ordered slice of logs handed to an indexer,
// together with the timestamps of the blocks the logs came from.
type LogBatch struct {
	// Logs are ordered by (block number, log index) ascending.
	Logs []types.Log

	// Timestamps maps block numbers of the logs to their block timestamps.
	Timestamps map[uint64]uint64

	// FromBlock and ToBlock delimit the inclusive range the batch covers.
	FromBlock uint64
	ToBlock   uint64
}

// Indexer consumes log batches streamed by the syncer and derives state from them.
type Indexer interface {
	// Topics returns the event signature hashes the indexer wants to receive.
	// The syncer uses them to build the topic0 filter for eth_getLogs.
	Topics() []common.Hash

	// StartBlock returns the block number from which the indexer wants logs.
	StartBlock() uint64

	// HandleBatch processes a batch of logs. Logs within the batch must be
	// applied in order. The call must be idempotent: replaying an already
	// processed batch leaves the derived state unchanged.
	HandleBatch(ctx context.Context, batch *LogBatch) error

	// Close releases any resources held by the indexer.
	Close() error
}
