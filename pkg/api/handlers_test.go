package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/tokenbay/p2p-ledger/internal/db"
	"github.com/tokenbay/p2p-ledger/internal/ledger"
	"github.com/tokenbay/p2p-ledger/internal/ledger/migrations"
	"github.com/tokenbay/p2p-ledger/internal/logger"
	chainsync "github.com/tokenbay/p2p-ledger/internal/sync"
	"github.com/tokenbay/p2p-ledger/pkg/config"
)

const (
	productAddr = "0xc001000000000000000000000000000000000001"
	managerAddr = "0xd001000000000000000000000000000000000001"
	aliceAddr   = "0xa001000000000000000000000000000000000001"
	bobAddr     = "0xa002000000000000000000000000000000000002"
)

type stubSyncStatus struct {
	state *chainsync.SyncState
	err   error
}

func (s *stubSyncStatus) GetState() (*chainsync.SyncState, error) {
	return s.state, s.err
}

func setupAPI(t *testing.T) *httptest.Server {
	t.Helper()

	database, err := db.NewSQLiteDB(t.TempDir() + "/api_test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, migrations.RunMigrations(logger.NewNopLogger(), database))

	store := ledger.NewSQLStore(database)
	seedLedger(t, store)

	status := &stubSyncStatus{
		state: &chainsync.SyncState{
			ID:               1,
			LastIndexedBlock: 120,
			Mode:             "live",
		},
	}

	srv := NewServer(
		&config.APIConfig{Enabled: true},
		ledger.NewQueries(database),
		status,
		logger.NewNopLogger(),
	)

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	return ts
}

func seedLedger(t *testing.T, store *ledger.SQLStore) {
	t.Helper()

	product := common.HexToAddress(productAddr)
	manager := common.HexToAddress(managerAddr)
	alice := common.HexToAddress(aliceAddr)
	bob := common.HexToAddress(bobAddr)

	require.NoError(t, store.InsertProduct(&ledger.Product{
		ID:             ledger.AddressKey(product),
		SequenceID:     big.NewInt(1),
		Address:        product,
		FactoryAddress: common.HexToAddress("0xfa01000000000000000000000000000000000001"),
		TokenName:      "Solar Farm Alpha",
		TokenSymbol:    "SFA",
		MaxSupply:      big.NewInt(1_000_000),
		TotalSupply:    big.NewInt(150),
		HolderCount:    2,
		CreatedAt:      1700000000,
		BlockNumber:    100,
		TxHash:         common.HexToHash("0xaa"),
	}))

	require.NoError(t, store.InsertManager(&ledger.Manager{
		ID:                ledger.AddressKey(manager),
		SequenceID:        big.NewInt(1),
		Address:           manager,
		Owner:             alice,
		ManagerName:       "Green Fund",
		TotalFundsManaged: big.NewInt(500),
		CreatedAt:         1700000000,
		BlockNumber:       90,
	}))

	for i, holder := range []common.Address{alice, bob} {
		require.NoError(t, store.InsertOwnership(&ledger.Ownership{
			ID:              ledger.OwnershipID(product, holder),
			ContractAddress: product,
			UserAddress:     holder,
			AssetType:       ledger.AssetP2PToken,
			Balance:         big.NewInt(int64(100 - i*50)),
			ProductID:       ledger.AddressKey(product),
			UpdatedAt:       1700000000,
			BlockNumber:     uint64(100 + i),
		}))
	}

	require.NoError(t, store.InsertOwnership(&ledger.Ownership{
		ID:              ledger.OwnershipID(manager, alice),
		ContractAddress: manager,
		UserAddress:     alice,
		AssetType:       ledger.AssetFund,
		Balance:         big.NewInt(500),
		ProductID:       ledger.AddressKey(manager),
		UpdatedAt:       1700000000,
		BlockNumber:     95,
	}))

	require.NoError(t, store.InsertAllocation(&ledger.Allocation{
		ID:             ledger.AllocationID(manager, product),
		ManagerAddress: manager,
		ProjectToken:   product,
		TokenBalance:   big.NewInt(20),
		UpdatedAt:      1700000000,
	}))

	txHash := common.HexToHash("0xcafe000000000000000000000000000000000000000000000000000000000001")
	entries := []struct {
		logIndex uint64
		user     common.Address
		txType   string
		block    uint64
	}{
		{1, alice, ledger.TxTypeBuy, 100},
		{2, alice, ledger.TxTypeSell, 101},
		{3, bob, ledger.TxTypeBuy, 102},
	}
	for _, e := range entries {
		require.NoError(t, store.InsertTransactionLog(&ledger.TransactionLog{
			ID:              ledger.TransactionLogID(txHash, e.logIndex),
			ContractAddress: common.HexToAddress(productAddr),
			UserAddress:     e.user,
			Type:            e.txType,
			AmountIn:        big.NewInt(10),
			AmountOut:       big.NewInt(10),
			Timestamp:       1700000000 + e.block,
			BlockNumber:     e.block,
			TxHash:          txHash,
			LogIndex:        e.logIndex,
		}))
	}
}

func getJSON(t *testing.T, ts *httptest.Server, path string, wantStatus int, out any) {
	t.Helper()

	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestAPI_Products(t *testing.T) {
	ts := setupAPI(t)

	var products []ProductResponse
	getJSON(t, ts, "/api/v1/products", http.StatusOK, &products)
	require.Len(t, products, 1)
	require.Equal(t, "Solar Farm Alpha", products[0].TokenName)
	require.Equal(t, "150", products[0].TotalSupply)
	require.Equal(t, uint64(2), products[0].HolderCount)

	var product ProductResponse
	getJSON(t, ts, "/api/v1/products/"+productAddr, http.StatusOK, &product)
	require.Equal(t, "SFA", product.TokenSymbol)
	require.Equal(t, "1000000", product.MaxSupply)

	var errResp ErrorResponse
	getJSON(t, ts, "/api/v1/products/0xdead000000000000000000000000000000000001", http.StatusNotFound, &errResp)
	require.Equal(t, http.StatusNotFound, errResp.Code)
}

func TestAPI_ProductHolders(t *testing.T) {
	ts := setupAPI(t)

	var holders []BalanceResponse
	getJSON(t, ts, "/api/v1/products/"+productAddr+"/holders", http.StatusOK, &holders)
	require.Len(t, holders, 2)

	getJSON(t, ts, "/api/v1/products/"+productAddr+"/holders?limit=1&offset=1", http.StatusOK, &holders)
	require.Len(t, holders, 1)

	getJSON(t, ts, "/api/v1/products/0xdead000000000000000000000000000000000001/holders", http.StatusNotFound, nil)
}

func TestAPI_Managers(t *testing.T) {
	ts := setupAPI(t)

	var managers []ManagerResponse
	getJSON(t, ts, "/api/v1/managers", http.StatusOK, &managers)
	require.Len(t, managers, 1)
	require.Equal(t, "Green Fund", managers[0].Name)
	require.Equal(t, "500", managers[0].TotalFundsManaged)

	var manager ManagerResponse
	getJSON(t, ts, "/api/v1/managers/"+managerAddr, http.StatusOK, &manager)
	require.Equal(t, "Green Fund", manager.Name)

	var allocations []AllocationResponse
	getJSON(t, ts, "/api/v1/managers/"+managerAddr+"/allocations", http.StatusOK, &allocations)
	require.Len(t, allocations, 1)
	require.Equal(t, "20", allocations[0].TokenBalance)

	var balances []BalanceResponse
	getJSON(t, ts, "/api/v1/managers/"+managerAddr+"/balances", http.StatusOK, &balances)
	require.Len(t, balances, 1)
	require.Equal(t, ledger.AssetFund, balances[0].AssetType)
	require.Equal(t, "500", balances[0].Balance)

	getJSON(t, ts, "/api/v1/managers/0xdead000000000000000000000000000000000001", http.StatusNotFound, nil)
}

func TestAPI_Transactions(t *testing.T) {
	ts := setupAPI(t)

	var page TransactionListResponse
	getJSON(t, ts, "/api/v1/transactions", http.StatusOK, &page)
	require.Len(t, page.Transactions, 3)
	require.Equal(t, int64(3), page.Pagination.Total)
	require.False(t, page.Pagination.HasMore)
	// Newest first
	require.Equal(t, uint64(102), page.Transactions[0].BlockNumber)

	getJSON(t, ts, fmt.Sprintf("/api/v1/transactions?user=%s", aliceAddr), http.StatusOK, &page)
	require.Len(t, page.Transactions, 2)
	require.Equal(t, int64(2), page.Pagination.Total)

	getJSON(t, ts, "/api/v1/transactions?type=buy", http.StatusOK, &page)
	require.Len(t, page.Transactions, 2)

	getJSON(t, ts, "/api/v1/transactions?limit=2", http.StatusOK, &page)
	require.Len(t, page.Transactions, 2)
	require.True(t, page.Pagination.HasMore)

	getJSON(t, ts, "/api/v1/transactions?limit=bogus", http.StatusBadRequest, nil)
	getJSON(t, ts, "/api/v1/transactions?offset=-1", http.StatusBadRequest, nil)
}

func TestAPI_Stats(t *testing.T) {
	ts := setupAPI(t)

	var stats StatsResponse
	getJSON(t, ts, "/api/v1/stats", http.StatusOK, &stats)
	require.Equal(t, int64(1), stats.Products)
	require.Equal(t, int64(1), stats.Managers)
	require.Equal(t, int64(2), stats.Holders)
	require.Equal(t, int64(3), stats.Transactions)
	require.Equal(t, uint64(120), stats.LastIndexedBlock)
}

func TestAPI_Health(t *testing.T) {
	ts := setupAPI(t)

	var health HealthResponse
	getJSON(t, ts, "/health", http.StatusOK, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, uint64(120), health.LastIndexedBlock)
	require.Equal(t, "live", health.SyncMode)
}
