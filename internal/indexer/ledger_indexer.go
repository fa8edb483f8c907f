package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ledgercommon "github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/events"
	"github.com/tokenbay/p2p-ledger/internal/ledger"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/pkg/config"
	pkgindexer "github.com/tokenbay/p2p-ledger/pkg/indexer"
)

// Compile-time check to ensure LedgerIndexer implements pkgindexer.Indexer interface.
var _ pkgindexer.Indexer = (*LedgerIndexer)(nil)

// LedgerIndexer turns raw contract logs into derived ledger state. Every log
// is applied inside its own database transaction so a crash mid-batch leaves
// the tables consistent with the checkpoint.
type LedgerIndexer struct {
	db         *sql.DB
	decoder    *events.Decoder
	dispatcher *ledger.Dispatcher
	startBlock uint64
	log        *logger.Logger
}

// New creates a LedgerIndexer over the given database.
func New(database *sql.DB, cfg *config.Config, log *logger.Logger) (*LedgerIndexer, error) {
	decoder, err := events.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create event decoder: %w", err)
	}

	indexerLog := log.WithComponent(ledgercommon.ComponentIndexer)

	dispatcher := ledger.NewDispatcher(
		ledger.NewReducer(indexerLog),
		common.HexToAddress(cfg.Contracts.ProductFactory),
		common.HexToAddress(cfg.Contracts.ManagerFactory),
		common.HexToAddress(cfg.Contracts.SwapRouter),
		indexerLog,
	)

	return &LedgerIndexer{
		db:         database,
		decoder:    decoder,
		dispatcher: dispatcher,
		startBlock: cfg.Sync.StartBlock,
		log:        indexerLog,
	}, nil
}

// Topics returns the event signature hashes the indexer subscribes to.
func (li *LedgerIndexer) Topics() []common.Hash {
	return li.decoder.Topics()
}

// StartBlock returns the block number from which the indexer wants logs.
func (li *LedgerIndexer) StartBlock() uint64 {
	return li.startBlock
}

// HandleBatch applies a batch of logs in order. Duplicate logs and logs from
// unknown contracts are counted and skipped without failing the batch.
func (li *LedgerIndexer) HandleBatch(ctx context.Context, batch *pkgindexer.LogBatch) error {
	for i := range batch.Logs {
		if err := li.applyLog(ctx, &batch.Logs[i], batch.Timestamps[batch.Logs[i].BlockNumber]); err != nil {
			return err
		}
	}

	if len(batch.Logs) > 0 {
		li.log.Debugw("batch applied",
			"logs", len(batch.Logs),
			"from_block", batch.FromBlock,
			"to_block", batch.ToBlock,
		)
	}

	return nil
}

// applyLog decodes a single log and applies it inside its own transaction.
func (li *LedgerIndexer) applyLog(ctx context.Context, l *ethtypes.Log, timestamp uint64) error {
	event, err := li.decoder.Decode(l, timestamp)
	if err != nil {
		if errors.Is(err, events.ErrUnknownEvent) {
			// The topic filter should prevent this, tolerate it anyway
			ledger.SkippedEventInc()
			li.log.Debugw("skipping unknown event",
				"address", l.Address.Hex(),
				"block", l.BlockNumber,
				"log_index", l.Index,
			)

			return nil
		}

		return fmt.Errorf("failed to decode log at block %d index %d: %w", l.BlockNumber, l.Index, err)
	}

	tx, err := li.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := li.dispatcher.Dispatch(ledger.NewSQLStore(tx), event); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			li.log.Errorw("rollback failed", "error", rbErr)
		}

		switch {
		case errors.Is(err, ledger.ErrDuplicateLog),
			errors.Is(err, ledger.ErrProductExists),
			errors.Is(err, ledger.ErrManagerExists):
			// Already applied, replay after a crash or restart
			ledger.DuplicateEventInc()
			li.log.Debugw("skipping duplicate event",
				"event", event.Name(),
				"tx_hash", event.EventMeta().TxHash.Hex(),
				"log_index", event.EventMeta().LogIndex,
			)

			return nil
		case errors.Is(err, ledger.ErrUnknownContract):
			ledger.SkippedEventInc()
			li.log.Debugw("skipping event from unknown contract",
				"event", event.Name(),
				"address", event.EventMeta().Address.Hex(),
				"block", event.EventMeta().BlockNumber,
			)

			return nil
		default:
			return fmt.Errorf("failed to apply %s at block %d index %d: %w",
				event.Name(), l.BlockNumber, l.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s at block %d index %d: %w",
			event.Name(), l.BlockNumber, l.Index, err)
	}

	ledger.EventAppliedInc(event.Name())

	return nil
}

// Close releases indexer resources. The database is owned by the caller.
func (li *LedgerIndexer) Close() error {
	return nil
}
