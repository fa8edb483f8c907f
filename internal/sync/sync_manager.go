package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	ledgercommon "github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/db"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

// SyncState is the single-row checkpoint the syncer resumes from.
// Uses meddler tags for automatic struct-to-db mapping.
type SyncState struct {
	ID                   int         `meddler:"id,pk" json:"-"`
	LastIndexedBlock     uint64      `meddler:"last_indexed_block" json:"last_indexed_block"`
	LastIndexedBlockHash common.Hash `meddler:"last_indexed_block_hash,hash" json:"last_indexed_block_hash"`
	LastIndexedTimestamp int64       `meddler:"last_indexed_timestamp" json:"last_indexed_timestamp"`
	Mode                 string      `meddler:"mode" json:"mode"`
}

// GetMode returns the Mode as a Mode type.
func (s *SyncState) GetMode() Mode {
	return Mode(s.Mode)
}

// SyncManager manages the synchronization state and checkpoints.
type SyncManager struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewSyncManager creates a new SyncManager instance.
func NewSyncManager(database *sql.DB, log *logger.Logger, maintenance db.Maintenance) *SyncManager {
	return &SyncManager{
		db:          database,
		log:         log.WithComponent(ledgercommon.ComponentSyncManager),
		maintenance: maintenance,
	}
}

// Initialize ensures the checkpoint row exists, seeding it with the configured
// start block on first run. An existing checkpoint is left untouched.
func (sm *SyncManager) Initialize(startBlock uint64) error {
	state, err := sm.GetState()
	if err != nil {
		return err
	}

	if state != nil {
		sm.log.Infow("resuming from existing checkpoint",
			"last_indexed_block", state.LastIndexedBlock,
			"mode", state.Mode,
		)

		return nil
	}

	initial := startBlock
	if initial > 0 {
		initial--
	}

	state = &SyncState{
		ID:                   1,
		LastIndexedBlock:     initial,
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 string(ModeBackfill),
	}

	if err := meddler.Insert(sm.db, "sync_state", state); err != nil {
		return fmt.Errorf("failed to initialize sync state: %w", err)
	}

	sm.log.Infow("starting fresh sync", "start_block", startBlock)

	return nil
}

// GetState returns the current synchronization state, or nil if no checkpoint
// has been written yet.
func (sm *SyncManager) GetState() (*SyncState, error) {
	if sm.maintenance != nil {
		unlock := sm.maintenance.AcquireOperationLock()
		defer unlock()
	}

	var state SyncState

	err := meddler.QueryRow(sm.db, &state, `SELECT * FROM sync_state WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &state, nil
}

// SaveCheckpoint saves a checkpoint with the given block number, hash, and mode.
func (sm *SyncManager) SaveCheckpoint(blockNum uint64, blockHash common.Hash, mode Mode) error {
	if sm.maintenance != nil {
		unlock := sm.maintenance.AcquireOperationLock()
		defer unlock()
	}

	state := SyncState{
		ID:                   1,
		LastIndexedBlock:     blockNum,
		LastIndexedBlockHash: blockHash,
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 string(mode),
	}

	if err := meddler.Update(sm.db, "sync_state", &state); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	LastIndexedBlockSet(blockNum)

	sm.log.Debugw("checkpoint saved",
		"block", blockNum,
		"block_hash", blockHash.Hex(),
		"mode", mode,
	)

	return nil
}

// Reset resets the sync state to the given starting block.
// This is useful for reindexing from a specific block.
func (sm *SyncManager) Reset(startBlock uint64) error {
	if sm.maintenance != nil {
		unlock := sm.maintenance.AcquireOperationLock()
		defer unlock()
	}

	state := SyncState{
		ID:                   1,
		LastIndexedBlock:     startBlock,
		LastIndexedBlockHash: common.Hash{},
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 string(ModeBackfill),
	}

	if err := meddler.Update(sm.db, "sync_state", &state); err != nil {
		return fmt.Errorf("failed to reset sync state: %w", err)
	}

	sm.log.Warnw("sync state reset", "start_block", startBlock)

	return nil
}

// DB returns the database connection for use by other components.
func (sm *SyncManager) DB() *sql.DB {
	return sm.db
}
