package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/pkg/config"
)

// Maintenance coordinates periodic database upkeep with normal operations.
type Maintenance interface {
	// Start begins background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for completion.
	Stop() error
	// AcquireOperationLock takes a shared lock for a database operation and
	// returns the release function.
	AcquireOperationLock() func()
	// GetMetrics returns current maintenance metrics.
	GetMetrics() MaintenanceMetrics
	// RunMaintenance performs one maintenance cycle immediately.
	RunMaintenance(ctx context.Context) error
}

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// NoOpMaintenance satisfies Maintenance without doing anything. Used when no
// maintenance section is configured.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                          { return nil }
func (m *NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics       { return MaintenanceMetrics{} }

// MaintenanceCoordinator runs WAL checkpoints and vacuums on an interval.
// Normal operations hold the read side of opLock; a maintenance cycle takes
// the write side, so it waits for in-flight operations and blocks new ones
// until the cycle finishes.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	opLock sync.RWMutex

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup

	mu       sync.Mutex
	lastRun  time.Time
	runCount uint64
	lastErr  error
}

// NewMaintenanceCoordinator creates a maintenance coordinator for the
// database at dbPath. A nil config disables maintenance entirely.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// Start begins background maintenance if enabled.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("background maintenance is disabled")
		return nil
	}

	m.workerCtx, m.workerCancel = context.WithCancel(ctx)

	if m.config.VacuumOnStartup {
		m.log.Info("running startup maintenance")

		if err := m.RunMaintenance(m.workerCtx); err != nil {
			m.log.Warnw("startup maintenance failed", "error", err)
		}
	}

	m.workerWg.Add(1)
	go m.worker(m.config.CheckInterval.Duration)

	m.log.Infow("background maintenance started",
		"interval", m.config.CheckInterval.Duration,
		"checkpoint_mode", m.config.WALCheckpointMode,
	)

	return nil
}

// Stop stops background maintenance and waits for the worker to exit.
func (m *MaintenanceCoordinator) Stop() error {
	if m.workerCancel == nil {
		return nil
	}

	m.workerCancel()
	m.workerWg.Wait()
	m.log.Info("background maintenance stopped")

	return nil
}

func (m *MaintenanceCoordinator) worker(interval time.Duration) {
	defer m.workerWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.workerCtx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(m.workerCtx); err != nil {
				m.log.Warnw("periodic maintenance failed", "error", err)
			}
		}
	}
}

// RunMaintenance performs one maintenance cycle: WAL checkpoint, then vacuum.
// It holds the exclusive side of the operation lock for the whole cycle.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	start := time.Now().UTC()

	MaintenanceRunsInc()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	// The lock wait may have outlived the context
	if err := ctx.Err(); err != nil {
		return err
	}

	sizeBefore, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnw("failed to stat database before maintenance", "error", err)
	}

	var cycleErr error

	if err := m.walCheckpoint(); err != nil {
		cycleErr = fmt.Errorf("WAL checkpoint failed: %w", err)
		m.log.Errorw("WAL checkpoint failed", "error", err)
	}

	if err := m.vacuum(); err != nil && cycleErr == nil {
		cycleErr = fmt.Errorf("vacuum failed: %w", err)
		m.log.Warnw("vacuum failed", "error", err)
	}

	sizeAfter, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnw("failed to stat database after maintenance", "error", err)
	}

	elapsed := time.Since(start)

	m.mu.Lock()
	m.lastRun = time.Now().UTC()
	m.runCount++
	m.lastErr = cycleErr
	m.mu.Unlock()

	MaintenanceDurationLog(elapsed)
	MaintenanceLastRunLog()

	if cycleErr != nil {
		MaintenanceErrorInc()
		return cycleErr
	}

	MaintenanceSuccessInc()

	if sizeBefore > sizeAfter {
		reclaimed := uint64(sizeBefore - sizeAfter)
		MaintenanceSpaceReclaimedLog(reclaimed)
		m.log.Infow("maintenance completed",
			"duration", elapsed,
			"reclaimed_mb", common.BytesToMB(reclaimed),
		)
	} else {
		m.log.Infow("maintenance completed", "duration", elapsed)
	}

	DBSizeLog(sizeAfter)

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint() error {
	isWAL, err := m.isWALMode()
	if err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}

	if !isWAL {
		m.log.Debug("database not in WAL mode, skipping checkpoint")
		return nil
	}

	var busy, logFrames, checkpointed int

	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	WALCheckpointInc(strings.ToLower(m.config.WALCheckpointMode))

	m.log.Debugw("WAL checkpoint complete",
		"mode", m.config.WALCheckpointMode,
		"busy", busy,
		"log_frames", logFrames,
		"checkpointed", checkpointed,
	)

	if busy > 0 {
		m.log.Warnw("WAL checkpoint left busy pages", "busy", busy)
	}

	return nil
}

func (m *MaintenanceCoordinator) vacuum() error {
	if err := Vacuum(m.db); err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return fmt.Errorf("cannot vacuum: database is locked (retry later)")
		}

		return err
	}

	VacuumRunsInc()

	return nil
}

func (m *MaintenanceCoordinator) isWALMode() (bool, error) {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return false, err
	}

	return strings.EqualFold(mode, "wal"), nil
}

// AcquireOperationLock takes the shared side of the operation lock so a
// database operation cannot overlap a maintenance cycle.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// GetMetrics returns current maintenance metrics.
func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MaintenanceMetrics{
		LastMaintenanceTime:  m.lastRun,
		MaintenanceCount:     m.runCount,
		LastMaintenanceError: m.lastErr,
	}
}
