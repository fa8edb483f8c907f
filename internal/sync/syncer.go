package sync

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ledgercommon "github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/internal/rpc"
	"github.com/tokenbay/p2p-ledger/pkg/config"
	pkgindexer "github.com/tokenbay/p2p-ledger/pkg/indexer"
	pkgrpc "github.com/tokenbay/p2p-ledger/pkg/rpc"
)

// Syncer streams contract logs from the chain to the indexer in block order.
// It backfills history in chunks, then tails new blocks as they pass the
// configured finality threshold, checkpointing after every processed range.
type Syncer struct {
	cfg      config.SyncConfig
	finality BlockFinality
	topics   [][]common.Hash

	rpc     pkgrpc.EthClient
	manager *SyncManager
	indexer pkgindexer.Indexer
	log     *logger.Logger

	mode Mode
}

// NewSyncer creates a Syncer streaming to the given indexer.
func NewSyncer(
	cfg config.SyncConfig,
	rpcClient pkgrpc.EthClient,
	manager *SyncManager,
	indexer pkgindexer.Indexer,
	log *logger.Logger,
) (*Syncer, error) {
	finality, err := ParseBlockFinality(cfg.Finality)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		cfg:      cfg,
		finality: finality,
		topics:   [][]common.Hash{indexer.Topics()},
		rpc:      rpcClient,
		manager:  manager,
		indexer:  indexer,
		log:      log.WithComponent(ledgercommon.ComponentSyncer),
		mode:     ModeBackfill,
	}, nil
}

// Run drives the sync loop until the context is cancelled or an
// unrecoverable error occurs.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.manager.Initialize(s.indexer.StartBlock()); err != nil {
		return err
	}

	state, err := s.manager.GetState()
	if err != nil {
		return err
	}

	s.mode = ModeBackfill
	lastIndexed := state.LastIndexedBlock

	s.log.Infow("sync started",
		"last_indexed_block", lastIndexed,
		"finality", s.finality,
		"chunk_size", s.cfg.ChunkSize,
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync cancelled")

			return ctx.Err()
		default:
		}

		head, err := s.finalizedHead(ctx)
		if err != nil {
			return fmt.Errorf("failed to get chain head: %w", err)
		}

		headNum := head.Number.Uint64()
		ChainHeadBlockSet(headNum)

		fromBlock := lastIndexed + 1
		if fromBlock > headNum {
			if s.mode != ModeLive {
				s.log.Info("caught up with chain head, switching to live mode")
				s.mode = ModeLive
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.PollInterval.Duration):
			}

			continue
		}

		toBlock := min(fromBlock+s.cfg.ChunkSize-1, headNum)

		processedTo, err := s.processRange(ctx, fromBlock, toBlock)
		if err != nil {
			return err
		}

		lastIndexed = processedTo
	}
}

// processRange fetches, indexes and checkpoints one block range. The range
// may shrink if the RPC endpoint rejects it as too large; the returned block
// number is the range end that was actually processed.
func (s *Syncer) processRange(ctx context.Context, fromBlock, toBlock uint64) (uint64, error) {
	logs, fromBlock, toBlock, err := s.fetchLogs(ctx, fromBlock, toBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch logs for range [%d, %d]: %w", fromBlock, toBlock, err)
	}

	RangeFetchedInc(s.mode)
	LogsFetchedAdd(len(logs))

	// eth_getLogs results are ordered, but the reducer depends on it
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}

		return logs[i].Index < logs[j].Index
	})

	timestamps, err := s.blockTimestamps(ctx, logs)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch block timestamps: %w", err)
	}

	if len(logs) > 0 {
		s.log.Debugw("processing logs",
			"count", len(logs),
			"from_block", fromBlock,
			"to_block", toBlock,
		)
	}

	if err := s.indexer.HandleBatch(ctx, &pkgindexer.LogBatch{
		Logs:       logs,
		Timestamps: timestamps,
		FromBlock:  fromBlock,
		ToBlock:    toBlock,
	}); err != nil {
		return 0, fmt.Errorf("failed to handle batch [%d, %d]: %w", fromBlock, toBlock, err)
	}

	endHeader, err := s.rpc.GetBlockHeader(ctx, toBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to get header for block %d: %w", toBlock, err)
	}

	if err := s.manager.SaveCheckpoint(toBlock, endHeader.Hash(), s.mode); err != nil {
		return 0, err
	}

	return toBlock, nil
}

// fetchLogs fetches logs for the range, automatically shrinking it when the
// RPC endpoint reports too many results. Returns the range actually fetched.
func (s *Syncer) fetchLogs(
	ctx context.Context,
	fromBlock, toBlock uint64,
) ([]types.Log, uint64, uint64, error) {
	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(int64(fromBlock)),
		ToBlock:   big.NewInt(int64(toBlock)),
		Topics:    s.topics,
	}

	logs, err := s.rpc.GetLogs(ctx, query)
	if err != nil {
		ok, errData := rpc.IsTooManyResultsError(err)
		if !ok {
			return nil, 0, 0, err
		}

		RangeSplitInc()

		var newFrom, newTo uint64
		if suggestedFrom, suggestedTo, ok := rpc.ParseSuggestedBlockRange(errData); ok {
			s.log.Infow("too many logs, retrying with suggested range",
				"from", suggestedFrom,
				"to", suggestedTo,
				"original_from", fromBlock,
				"original_to", toBlock,
			)

			newFrom, newTo = suggestedFrom, suggestedTo
		} else {
			mid := (fromBlock + toBlock) / 2
			if mid == fromBlock {
				return nil, 0, 0, fmt.Errorf("cannot split range further, single block %d has too many logs", fromBlock)
			}

			s.log.Infow("too many logs, retrying with halved range",
				"from", fromBlock,
				"to", mid,
				"original_to", toBlock,
			)

			newFrom, newTo = fromBlock, mid
		}

		return s.fetchLogs(ctx, newFrom, newTo)
	}

	return logs, fromBlock, toBlock, nil
}

// blockTimestamps fetches timestamps for every block that produced a log.
func (s *Syncer) blockTimestamps(ctx context.Context, logs []types.Log) (map[uint64]uint64, error) {
	timestamps := make(map[uint64]uint64)
	if len(logs) == 0 {
		return timestamps, nil
	}

	blockNums := make([]uint64, 0)

	for i := range logs {
		if _, seen := timestamps[logs[i].BlockNumber]; !seen {
			timestamps[logs[i].BlockNumber] = 0
			blockNums = append(blockNums, logs[i].BlockNumber)
		}
	}

	headers, err := s.rpc.BatchGetBlockHeaders(ctx, blockNums)
	if err != nil {
		return nil, err
	}

	for _, header := range headers {
		if header == nil {
			continue
		}

		timestamps[header.Number.Uint64()] = header.Time
	}

	return timestamps, nil
}

// finalizedHead gets the block header considered final based on config.
func (s *Syncer) finalizedHead(ctx context.Context) (*types.Header, error) {
	switch s.finality {
	case FinalityFinalized:
		return s.rpc.GetFinalizedBlockHeader(ctx)
	case FinalitySafe:
		return s.rpc.GetSafeBlockHeader(ctx)
	case FinalityLatest:
		header, err := s.rpc.GetLatestBlockHeader(ctx)
		if err != nil {
			return nil, err
		}

		headerNum := header.Number.Uint64()
		if s.cfg.FinalizedLag == 0 || headerNum < s.cfg.FinalizedLag {
			return header, nil
		}

		return s.rpc.GetBlockHeader(ctx, headerNum-s.cfg.FinalizedLag)
	default:
		return nil, fmt.Errorf("invalid finality mode: %s", s.finality)
	}
}
