package sync

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	ledgercommon "github.com/tokenbay/p2p-ledger/internal/common"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	"github.com/tokenbay/p2p-ledger/pkg/config"
	pkgindexer "github.com/tokenbay/p2p-ledger/pkg/indexer"
)

var testTopic = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")

// mockEthClient serves canned logs and headers for a fixed chain.
type mockEthClient struct {
	head uint64
	logs map[uint64][]types.Log
}

func (m *mockEthClient) Close() {}

func (m *mockEthClient) GetLogs(_ context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var out []types.Log

	for b := query.FromBlock.Uint64(); b <= query.ToBlock.Uint64(); b++ {
		out = append(out, m.logs[b]...)
	}

	return out, nil
}

func (m *mockEthClient) header(blockNum uint64) *types.Header {
	return &types.Header{
		Number: new(big.Int).SetUint64(blockNum),
		Time:   1700000000 + blockNum,
	}
}

func (m *mockEthClient) GetBlockHeader(_ context.Context, blockNum uint64) (*types.Header, error) {
	return m.header(blockNum), nil
}

func (m *mockEthClient) GetLatestBlockHeader(_ context.Context) (*types.Header, error) {
	return m.header(m.head), nil
}

func (m *mockEthClient) GetFinalizedBlockHeader(_ context.Context) (*types.Header, error) {
	return m.header(m.head), nil
}

func (m *mockEthClient) GetSafeBlockHeader(_ context.Context) (*types.Header, error) {
	return m.header(m.head), nil
}

func (m *mockEthClient) BatchGetBlockHeaders(_ context.Context, blockNums []uint64) ([]*types.Header, error) {
	headers := make([]*types.Header, len(blockNums))
	for i, b := range blockNums {
		headers[i] = m.header(b)
	}

	return headers, nil
}

// mockIndexer records the batches it receives.
type mockIndexer struct {
	mu         sync.Mutex
	batches    []*pkgindexer.LogBatch
	startBlock uint64
	failWith   error
}

func (m *mockIndexer) Topics() []common.Hash { return []common.Hash{testTopic} }
func (m *mockIndexer) StartBlock() uint64    { return m.startBlock }
func (m *mockIndexer) Close() error          { return nil }

func (m *mockIndexer) HandleBatch(_ context.Context, batch *pkgindexer.LogBatch) error {
	if m.failWith != nil {
		return m.failWith
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)

	return nil
}

func (m *mockIndexer) received() []*pkgindexer.LogBatch {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*pkgindexer.LogBatch(nil), m.batches...)
}

func testLog(blockNum uint64, index uint) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0xc001000000000000000000000000000000000001"),
		Topics:      []common.Hash{testTopic},
		BlockNumber: blockNum,
		TxHash:      common.HexToHash("0xaa"),
		Index:       index,
	}
}

func testSyncConfig(startBlock, chunkSize uint64) config.SyncConfig {
	return config.SyncConfig{
		StartBlock:   startBlock,
		ChunkSize:    chunkSize,
		Finality:     "finalized",
		PollInterval: ledgercommon.NewDuration(5 * time.Millisecond),
	}
}

// runUntilBlock runs the syncer until the checkpoint reaches the target block.
func runUntilBlock(t *testing.T, s *Syncer, sm *SyncManager, target uint64) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for {
		state, err := sm.GetState()
		require.NoError(t, err)

		if state != nil && state.LastIndexedBlock >= target {
			cancel()
			break
		}

		select {
		case err := <-done:
			t.Fatalf("syncer stopped early: %v", err)
		case <-time.After(2 * time.Millisecond):
		}
	}

	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSyncer_BackfillToHead(t *testing.T) {
	client := &mockEthClient{
		head: 10,
		logs: map[uint64][]types.Log{
			2: {testLog(2, 0), testLog(2, 1)},
			7: {testLog(7, 0)},
		},
	}
	indexer := &mockIndexer{startBlock: 1}
	sm := NewSyncManager(setupSyncDB(t), logger.NewNopLogger(), nil)

	s, err := NewSyncer(testSyncConfig(1, 4), client, sm, indexer, logger.NewNopLogger())
	require.NoError(t, err)

	runUntilBlock(t, s, sm, 10)

	batches := indexer.received()
	require.Len(t, batches, 3)

	// Chunked ranges cover [1,10] without gaps or overlap
	require.Equal(t, uint64(1), batches[0].FromBlock)
	require.Equal(t, uint64(4), batches[0].ToBlock)
	require.Equal(t, uint64(5), batches[1].FromBlock)
	require.Equal(t, uint64(8), batches[1].ToBlock)
	require.Equal(t, uint64(9), batches[2].FromBlock)
	require.Equal(t, uint64(10), batches[2].ToBlock)

	require.Len(t, batches[0].Logs, 2)
	require.Len(t, batches[1].Logs, 1)
	require.Empty(t, batches[2].Logs)

	// Timestamps are provided for every block that produced a log
	require.Equal(t, uint64(1700000002), batches[0].Timestamps[2])
	require.Equal(t, uint64(1700000007), batches[1].Timestamps[7])

	// Logs arrive ordered within the batch
	require.Equal(t, uint(0), batches[0].Logs[0].Index)
	require.Equal(t, uint(1), batches[0].Logs[1].Index)
}

func TestSyncer_ResumesFromCheckpoint(t *testing.T) {
	client := &mockEthClient{
		head: 20,
		logs: map[uint64][]types.Log{15: {testLog(15, 0)}},
	}
	database := setupSyncDB(t)
	sm := NewSyncManager(database, logger.NewNopLogger(), nil)

	require.NoError(t, sm.Initialize(1))
	require.NoError(t, sm.SaveCheckpoint(12, common.HexToHash("0xbeef"), ModeBackfill))

	indexer := &mockIndexer{startBlock: 1}
	s, err := NewSyncer(testSyncConfig(1, 100), client, sm, indexer, logger.NewNopLogger())
	require.NoError(t, err)

	runUntilBlock(t, s, sm, 20)

	batches := indexer.received()
	require.Len(t, batches, 1)
	require.Equal(t, uint64(13), batches[0].FromBlock, "resumes after the checkpoint, not the start block")
	require.Equal(t, uint64(20), batches[0].ToBlock)
	require.Len(t, batches[0].Logs, 1)
}

func TestSyncer_IndexerErrorStopsSync(t *testing.T) {
	client := &mockEthClient{head: 5, logs: map[uint64][]types.Log{}}
	indexerErr := errors.New("apply failed")
	indexer := &mockIndexer{startBlock: 1, failWith: indexerErr}
	sm := NewSyncManager(setupSyncDB(t), logger.NewNopLogger(), nil)

	s, err := NewSyncer(testSyncConfig(1, 100), client, sm, indexer, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.ErrorIs(t, s.Run(ctx), indexerErr)

	// Failed range is not checkpointed
	state, err := sm.GetState()
	require.NoError(t, err)
	require.Equal(t, uint64(0), state.LastIndexedBlock)
}

func TestSyncer_InvalidFinality(t *testing.T) {
	cfg := testSyncConfig(1, 100)
	cfg.Finality = "instant"

	_, err := NewSyncer(cfg, &mockEthClient{}, nil, &mockIndexer{}, logger.NewNopLogger())
	require.ErrorContains(t, err, "invalid block finality")
}
