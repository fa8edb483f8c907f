package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tokenbay/p2p-ledger/internal/events"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

// Anomaly kinds reported to the operator channel. Anomalies never corrupt
// derived state: the offending mutation is skipped or clamped at zero.
const (
	AnomalyMissingProduct   = "missing_product"
	AnomalyMissingManager   = "missing_manager"
	AnomalySupplyClamped    = "supply_clamped"
	AnomalyFundsClamped     = "funds_clamped"
	AnomalyAllocationClamp  = "allocation_clamped"
	AnomalyHolderCountFloor = "holder_count_floor"
)

// Reducer holds the deterministic transition functions that turn one decoded
// event plus current persisted state into new persisted state. Events must be
// delivered in increasing (block, log index) order, one at a time; the
// transitions rely on that ordering instead of locking.
type Reducer struct {
	log *logger.Logger
}

// NewReducer creates a reducer reporting anomalies through the given logger.
func NewReducer(log *logger.Logger) *Reducer {
	return &Reducer{log: log}
}

// ProductDeployed inserts a new product with zero supply and no holders.
// A replayed deploy for the same address surfaces ErrProductExists, which the
// caller treats as an already-applied event.
func (r *Reducer) ProductDeployed(s Store, e *events.ContractDeployed) error {
	return s.InsertProduct(&Product{
		ID:             AddressKey(e.ContractAddress),
		SequenceID:     e.ContractID,
		Address:        e.ContractAddress,
		FactoryAddress: e.Address,
		TokenName:      e.TokenName,
		TokenSymbol:    e.TokenSymbol,
		MaxSupply:      e.MaxSupply,
		TotalSupply:    big.NewInt(0),
		HolderCount:    0,
		CreatedAt:      e.Timestamp,
		BlockNumber:    e.BlockNumber,
		TxHash:         e.TxHash,
	})
}

// Buy credits the buyer's token balance and the product's total supply, with
// a BUY audit row as the idempotency guard.
func (r *Reducer) Buy(s Store, e *events.BuyToken) error {
	if err := s.InsertTransactionLog(&TransactionLog{
		ID:              TransactionLogID(e.TxHash, e.LogIndex),
		ContractAddress: e.Address,
		UserAddress:     e.Buyer,
		Type:            TxTypeBuy,
		AmountIn:        e.Amount,
		AmountOut:       e.Amount,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TxHash:          e.TxHash,
		LogIndex:        e.LogIndex,
	}); err != nil {
		return err
	}

	if err := r.adjustOwnership(s, e.Address, e.Buyer, AssetP2PToken, e.Amount, &e.Meta); err != nil {
		return err
	}

	return r.adjustProductSupply(s, e.Address, e.Amount)
}

// Sell debits the seller's token balance and the product's total supply, with
// a SELL audit row as the idempotency guard.
func (r *Reducer) Sell(s Store, e *events.SellToken) error {
	if err := s.InsertTransactionLog(&TransactionLog{
		ID:              TransactionLogID(e.TxHash, e.LogIndex),
		ContractAddress: e.Address,
		UserAddress:     e.Seller,
		Type:            TxTypeSell,
		AmountIn:        e.Amount,
		AmountOut:       e.Amount,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TxHash:          e.TxHash,
		LogIndex:        e.LogIndex,
	}); err != nil {
		return err
	}

	if err := r.adjustOwnership(s, e.Address, e.Seller, AssetP2PToken, neg(e.Amount), &e.Meta); err != nil {
		return err
	}

	return r.adjustProductSupply(s, e.Address, neg(e.Amount))
}

// ManagerDeployed inserts a new manager with zero funds under management.
func (r *Reducer) ManagerDeployed(s Store, e *events.ManagerCreated) error {
	return s.InsertManager(&Manager{
		ID:                AddressKey(e.ManagerAddress),
		SequenceID:        e.ManagerID,
		Address:           e.ManagerAddress,
		Owner:             e.Owner,
		ManagerName:       e.ManagerName,
		TotalFundsManaged: big.NewInt(0),
		CreatedAt:         e.Timestamp,
		BlockNumber:       e.BlockNumber,
	})
}

// Deposit credits the manager's funds and the user's FUND balance.
func (r *Reducer) Deposit(s Store, e *events.Deposit) error {
	if err := s.InsertTransactionLog(&TransactionLog{
		ID:              TransactionLogID(e.TxHash, e.LogIndex),
		ContractAddress: e.Address,
		UserAddress:     e.User,
		Type:            TxTypeDepositFund,
		AmountIn:        e.Amount,
		AmountOut:       big.NewInt(0),
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TxHash:          e.TxHash,
		LogIndex:        e.LogIndex,
	}); err != nil {
		return err
	}

	if err := r.adjustManagerFunds(s, e.Address, e.Amount); err != nil {
		return err
	}

	return r.adjustOwnership(s, e.Address, e.User, AssetFund, e.Amount, &e.Meta)
}

// Withdraw debits the manager's funds and the user's FUND balance.
func (r *Reducer) Withdraw(s Store, e *events.Withdraw) error {
	if err := s.InsertTransactionLog(&TransactionLog{
		ID:              TransactionLogID(e.TxHash, e.LogIndex),
		ContractAddress: e.Address,
		UserAddress:     e.User,
		Type:            TxTypeWithdrawFund,
		AmountIn:        big.NewInt(0),
		AmountOut:       e.Amount,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TxHash:          e.TxHash,
		LogIndex:        e.LogIndex,
	}); err != nil {
		return err
	}

	if err := r.adjustManagerFunds(s, e.Address, neg(e.Amount)); err != nil {
		return err
	}

	return r.adjustOwnership(s, e.Address, e.User, AssetFund, neg(e.Amount), &e.Meta)
}

// Invested upserts the manager's allocation for a project token. No audit row
// is written for invest/divest activity.
func (r *Reducer) Invested(s Store, e *events.Invested) error {
	id := AllocationID(e.Address, e.ProjectToken)

	allocation, err := s.FindAllocation(id)
	if err != nil {
		return err
	}

	if allocation == nil {
		return s.InsertAllocation(&Allocation{
			ID:             id,
			ManagerAddress: e.Address,
			ProjectToken:   e.ProjectToken,
			TokenBalance:   e.AmountTokenReceived,
			UpdatedAt:      e.Timestamp,
		})
	}

	allocation.TokenBalance = new(big.Int).Add(allocation.TokenBalance, e.AmountTokenReceived)
	allocation.UpdatedAt = e.Timestamp

	return s.UpdateAllocation(allocation)
}

// Divested reduces the manager's allocation for a project token, clamped at
// zero. An absent allocation is a no-op.
func (r *Reducer) Divested(s Store, e *events.Divested) error {
	id := AllocationID(e.Address, e.ProjectToken)

	allocation, err := s.FindAllocation(id)
	if err != nil {
		return err
	}
	if allocation == nil {
		return nil
	}

	newBalance := new(big.Int).Sub(allocation.TokenBalance, e.AmountTokenSold)
	if newBalance.Sign() < 0 {
		r.anomaly(AnomalyAllocationClamp, "allocation", id,
			"divested %s exceeds balance %s", e.AmountTokenSold, allocation.TokenBalance)
		newBalance.SetInt64(0)
	}

	allocation.TokenBalance = newBalance
	allocation.UpdatedAt = e.Timestamp

	return s.UpdateAllocation(allocation)
}

// Swapped records a SWAP audit row. The router is an external AMM, so no
// ownership or supply state changes.
func (r *Reducer) Swapped(s Store, e *events.Swapped) error {
	related := e.ToToken

	return s.InsertTransactionLog(&TransactionLog{
		ID:              TransactionLogID(e.TxHash, e.LogIndex),
		ContractAddress: e.FromToken,
		RelatedAddress:  &related,
		UserAddress:     e.User,
		Type:            TxTypeSwap,
		AmountIn:        e.AmountIn,
		AmountOut:       e.AmountOut,
		Timestamp:       e.Timestamp,
		BlockNumber:     e.BlockNumber,
		TxHash:          e.TxHash,
		LogIndex:        e.LogIndex,
	})
}

// adjustOwnership applies a signed balance delta to the (contract, user)
// ownership row. Rows exist only while the balance is positive: a decrease on
// an absent row is a no-op, and a delta driving the balance to zero or below
// deletes the row. Holder counts track P2P_TOKEN rows only.
func (r *Reducer) adjustOwnership(
	s Store,
	contract, user common.Address,
	assetType string,
	delta *big.Int,
	meta *events.Meta,
) error {
	id := OwnershipID(contract, user)

	ownership, err := s.FindOwnership(id)
	if err != nil {
		return err
	}

	if ownership == nil {
		if delta.Sign() <= 0 {
			// Cannot decrease a balance that does not exist. Correct under
			// in-order delivery: any prior increase has already been applied.
			return nil
		}

		if err := s.InsertOwnership(&Ownership{
			ID:              id,
			ContractAddress: contract,
			UserAddress:     user,
			AssetType:       assetType,
			Balance:         delta,
			ProductID:       AddressKey(contract),
			UpdatedAt:       meta.Timestamp,
			BlockNumber:     meta.BlockNumber,
		}); err != nil {
			return err
		}

		if assetType == AssetP2PToken {
			return r.incrementHolderCount(s, contract)
		}
		return nil
	}

	newBalance := new(big.Int).Add(ownership.Balance, delta)
	if newBalance.Sign() > 0 {
		ownership.Balance = newBalance
		ownership.UpdatedAt = meta.Timestamp
		ownership.BlockNumber = meta.BlockNumber
		return s.UpdateOwnership(ownership)
	}

	// Zero or negative balances are never persisted, the row is removed.
	if err := s.DeleteOwnership(id); err != nil {
		return err
	}

	if assetType == AssetP2PToken {
		return r.decrementHolderCount(s, contract)
	}
	return nil
}

// adjustProductSupply applies a signed delta to the product's total supply,
// clamped at zero. An unknown product is an anomaly, not an error.
func (r *Reducer) adjustProductSupply(s Store, contract common.Address, delta *big.Int) error {
	id := AddressKey(contract)

	product, err := s.FindProduct(id)
	if err != nil {
		return err
	}
	if product == nil {
		r.anomaly(AnomalyMissingProduct, "product", id, "supply adjustment for unknown product")
		return nil
	}

	newSupply := new(big.Int).Add(product.TotalSupply, delta)
	if newSupply.Sign() < 0 {
		r.anomaly(AnomalySupplyClamped, "product", id,
			"supply would go negative (%s), clamped to zero", newSupply)
		newSupply.SetInt64(0)
	}

	product.TotalSupply = newSupply

	return s.UpdateProduct(product)
}

// adjustManagerFunds applies a signed delta to the manager's total funds,
// clamped at zero. An unknown manager is an anomaly, not an error.
func (r *Reducer) adjustManagerFunds(s Store, manager common.Address, delta *big.Int) error {
	id := AddressKey(manager)

	record, err := s.FindManager(id)
	if err != nil {
		return err
	}
	if record == nil {
		r.anomaly(AnomalyMissingManager, "manager", id, "funds adjustment for unknown manager")
		return nil
	}

	newTotal := new(big.Int).Add(record.TotalFundsManaged, delta)
	if newTotal.Sign() < 0 {
		r.anomaly(AnomalyFundsClamped, "manager", id,
			"managed funds would go negative (%s), clamped to zero", newTotal)
		newTotal.SetInt64(0)
	}

	record.TotalFundsManaged = newTotal

	return s.UpdateManager(record)
}

func (r *Reducer) incrementHolderCount(s Store, contract common.Address) error {
	id := AddressKey(contract)

	product, err := s.FindProduct(id)
	if err != nil {
		return err
	}
	if product == nil {
		r.anomaly(AnomalyMissingProduct, "product", id, "holder count increment for unknown product")
		return nil
	}

	product.HolderCount++

	return s.UpdateProduct(product)
}

func (r *Reducer) decrementHolderCount(s Store, contract common.Address) error {
	id := AddressKey(contract)

	product, err := s.FindProduct(id)
	if err != nil {
		return err
	}
	if product == nil {
		r.anomaly(AnomalyMissingProduct, "product", id, "holder count decrement for unknown product")
		return nil
	}

	if product.HolderCount == 0 {
		r.anomaly(AnomalyHolderCountFloor, "product", id, "holder count already zero")
		return nil
	}

	product.HolderCount--

	return s.UpdateProduct(product)
}

// anomaly surfaces an invariant problem to the operator channel without
// failing the transition.
func (r *Reducer) anomaly(kind, entity, key, format string, args ...interface{}) {
	AnomalyInc(kind)
	r.log.Warnw("ledger anomaly: "+fmt.Sprintf(format, args...),
		"kind", kind,
		entity, key,
	)
}

func neg(v *big.Int) *big.Int {
	return new(big.Int).Neg(v)
}
