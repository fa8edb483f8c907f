package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset types carried by ownership records.
const (
	AssetP2PToken = "P2P_TOKEN"
	AssetFund     = "FUND"
)

// Transaction log entry types.
const (
	TxTypeBuy          = "BUY"
	TxTypeSell         = "SELL"
	TxTypeSwap         = "SWAP"
	TxTypeDepositFund  = "DEPOSIT_FUND"
	TxTypeWithdrawFund = "WITHDRAW_FUND"
)

// Table names used by the store.
const (
	TableProduct        = "product"
	TableOwnership      = "ownership"
	TableManager        = "manager"
	TableAllocation     = "manager_allocation"
	TableTransactionLog = "transaction_logs"
)

// AddressKey returns the lower-cased hex form of an address, the canonical
// key representation for all derived tables.
func AddressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// OwnershipID derives the composite ownership key for a (contract, user) pair.
func OwnershipID(contract, user common.Address) string {
	return AddressKey(contract) + "-" + AddressKey(user)
}

// AllocationID derives the composite allocation key for a (manager, project token) pair.
func AllocationID(manager, projectToken common.Address) string {
	return AddressKey(manager) + "-" + AddressKey(projectToken)
}

// TransactionLogID derives the idempotency key for an event's audit row.
func TransactionLogID(txHash common.Hash, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", txHash.Hex(), logIndex)
}

// Product is one deployed token sale contract and its derived supply state.
type Product struct {
	// ID is the lower-cased contract address
	ID             string         `meddler:"id"`
	SequenceID     *big.Int       `meddler:"sequence_id,bigint"`
	Address        common.Address `meddler:"address,address"`
	FactoryAddress common.Address `meddler:"factory_address,address"`
	TokenName      string         `meddler:"token_name"`
	TokenSymbol    string         `meddler:"token_symbol"`
	MaxSupply      *big.Int       `meddler:"max_supply,bigint"`
	TotalSupply    *big.Int       `meddler:"total_supply,bigint"`
	HolderCount    uint64         `meddler:"holder_count"`
	CreatedAt      uint64         `meddler:"created_at"`
	BlockNumber    uint64         `meddler:"block_number"`
	TxHash         common.Hash    `meddler:"tx_hash,hash"`
}

// Ownership is one (contract, user) balance. A row exists only while the
// balance is strictly positive.
type Ownership struct {
	// ID is "<contract>-<user>", both lower-cased
	ID              string         `meddler:"id"`
	ContractAddress common.Address `meddler:"contract_address,address"`
	UserAddress     common.Address `meddler:"user_address,address"`
	AssetType       string         `meddler:"asset_type"`
	Balance         *big.Int       `meddler:"balance,bigint"`
	// ProductID is the owning product key for P2P_TOKEN rows and the manager
	// key for FUND rows
	ProductID   string `meddler:"product_id"`
	UpdatedAt   uint64 `meddler:"updated_at"`
	BlockNumber uint64 `meddler:"block_number"`
}

// Manager is one deployed investment manager contract and its derived fund state.
type Manager struct {
	// ID is the lower-cased contract address
	ID                string         `meddler:"id"`
	SequenceID        *big.Int       `meddler:"sequence_id,bigint"`
	Address           common.Address `meddler:"address,address"`
	Owner             common.Address `meddler:"owner_address,address"`
	ManagerName       string         `meddler:"manager_name"`
	TotalFundsManaged *big.Int       `meddler:"total_funds_managed,bigint"`
	CreatedAt         uint64         `meddler:"created_at"`
	BlockNumber       uint64         `meddler:"block_number"`
}

// Allocation is the amount of one project token currently held by a manager.
// Never deleted, clamped at zero instead.
type Allocation struct {
	// ID is "<manager>-<projectToken>", both lower-cased
	ID             string         `meddler:"id"`
	ManagerAddress common.Address `meddler:"manager_address,address"`
	ProjectToken   common.Address `meddler:"project_token,address"`
	TokenBalance   *big.Int       `meddler:"token_balance,bigint"`
	UpdatedAt      uint64         `meddler:"updated_at"`
}

// TransactionLog is one append-only audit row, keyed by (txHash, logIndex).
type TransactionLog struct {
	// ID is "<txHash>-<logIndex>" and doubles as the idempotency key
	ID              string         `meddler:"id"`
	ContractAddress common.Address `meddler:"contract_address,address"`
	// RelatedAddress is the counter-asset of a swap, NULL otherwise
	RelatedAddress *common.Address `meddler:"related_address,address"`
	UserAddress    common.Address  `meddler:"user_address,address"`
	Type           string          `meddler:"type"`
	AmountIn       *big.Int        `meddler:"amount_in,bigint"`
	AmountOut      *big.Int        `meddler:"amount_out,bigint"`
	Timestamp      uint64          `meddler:"timestamp"`
	BlockNumber    uint64          `meddler:"block_number"`
	TxHash         common.Hash     `meddler:"tx_hash,hash"`
	LogIndex       uint64          `meddler:"log_index"`
}
