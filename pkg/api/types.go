package api

import (
	"time"

	"github.com/tokenbay/p2p-ledger/internal/ledger"
)

// ProductResponse is the API view of a tokenized product.
// Amounts are decimal strings to survive uint256 values.
type ProductResponse struct {
	Address        string `json:"address" example:"0xc001000000000000000000000000000000000001"`
	SequenceID     string `json:"sequence_id" example:"1"`
	FactoryAddress string `json:"factory_address"`
	TokenName      string `json:"token_name" example:"Solar Farm Alpha"`
	TokenSymbol    string `json:"token_symbol" example:"SFA"`
	MaxSupply      string `json:"max_supply" example:"1000000"`
	TotalSupply    string `json:"total_supply" example:"150"`
	HolderCount    uint64 `json:"holder_count" example:"2"`
	CreatedAt      uint64 `json:"created_at" example:"1700000000"`
	BlockNumber    uint64 `json:"block_number" example:"100"`
	TxHash         string `json:"tx_hash"`
}

// ManagerResponse is the API view of a fund manager.
type ManagerResponse struct {
	Address           string `json:"address"`
	SequenceID        string `json:"sequence_id" example:"1"`
	Owner             string `json:"owner"`
	Name              string `json:"name" example:"Green Fund"`
	TotalFundsManaged string `json:"total_funds_managed" example:"500"`
	CreatedAt         uint64 `json:"created_at"`
	BlockNumber       uint64 `json:"block_number"`
}

// BalanceResponse is one user's balance row, either product tokens or fund units.
type BalanceResponse struct {
	UserAddress     string `json:"user_address"`
	ContractAddress string `json:"contract_address"`
	AssetType       string `json:"asset_type" example:"P2P_TOKEN"`
	Balance         string `json:"balance" example:"40"`
	UpdatedAt       uint64 `json:"updated_at"`
	BlockNumber     uint64 `json:"block_number"`
}

// AllocationResponse is one manager-to-project-token allocation.
type AllocationResponse struct {
	ManagerAddress string `json:"manager_address"`
	ProjectToken   string `json:"project_token"`
	TokenBalance   string `json:"token_balance" example:"20"`
	UpdatedAt      uint64 `json:"updated_at"`
}

// TransactionResponse is one audit row from the transaction history.
type TransactionResponse struct {
	ContractAddress string  `json:"contract_address"`
	RelatedAddress  *string `json:"related_address,omitempty"`
	UserAddress     string  `json:"user_address"`
	Type            string  `json:"type" example:"BUY"`
	AmountIn        string  `json:"amount_in" example:"60"`
	AmountOut       string  `json:"amount_out" example:"60"`
	Timestamp       uint64  `json:"timestamp"`
	BlockNumber     uint64  `json:"block_number"`
	TxHash          string  `json:"tx_hash"`
	LogIndex        uint64  `json:"log_index"`
}

// TransactionListResponse is a page of transaction history.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Pagination   PaginationResult      `json:"pagination"`
}

// PaginationResult contains pagination metadata.
type PaginationResult struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// StatsResponse summarizes the derived ledger state.
type StatsResponse struct {
	Products         int64  `json:"products"`
	Managers         int64  `json:"managers"`
	Holders          int64  `json:"holders"`
	Transactions     int64  `json:"transactions"`
	LastIndexedBlock uint64 `json:"last_indexed_block"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status           string    `json:"status" example:"ok"`
	Timestamp        time.Time `json:"timestamp"`
	LastIndexedBlock uint64    `json:"last_indexed_block"`
	SyncMode         string    `json:"sync_mode" example:"live"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

func toProductResponse(p *ledger.Product) ProductResponse {
	return ProductResponse{
		Address:        p.Address.Hex(),
		SequenceID:     p.SequenceID.String(),
		FactoryAddress: p.FactoryAddress.Hex(),
		TokenName:      p.TokenName,
		TokenSymbol:    p.TokenSymbol,
		MaxSupply:      p.MaxSupply.String(),
		TotalSupply:    p.TotalSupply.String(),
		HolderCount:    p.HolderCount,
		CreatedAt:      p.CreatedAt,
		BlockNumber:    p.BlockNumber,
		TxHash:         p.TxHash.Hex(),
	}
}

func toManagerResponse(m *ledger.Manager) ManagerResponse {
	return ManagerResponse{
		Address:           m.Address.Hex(),
		SequenceID:        m.SequenceID.String(),
		Owner:             m.Owner.Hex(),
		Name:              m.ManagerName,
		TotalFundsManaged: m.TotalFundsManaged.String(),
		CreatedAt:         m.CreatedAt,
		BlockNumber:       m.BlockNumber,
	}
}

func toBalanceResponse(o *ledger.Ownership) BalanceResponse {
	return BalanceResponse{
		UserAddress:     o.UserAddress.Hex(),
		ContractAddress: o.ContractAddress.Hex(),
		AssetType:       o.AssetType,
		Balance:         o.Balance.String(),
		UpdatedAt:       o.UpdatedAt,
		BlockNumber:     o.BlockNumber,
	}
}

func toAllocationResponse(a *ledger.Allocation) AllocationResponse {
	return AllocationResponse{
		ManagerAddress: a.ManagerAddress.Hex(),
		ProjectToken:   a.ProjectToken.Hex(),
		TokenBalance:   a.TokenBalance.String(),
		UpdatedAt:      a.UpdatedAt,
	}
}

func toTransactionResponse(tx *ledger.TransactionLog) TransactionResponse {
	resp := TransactionResponse{
		ContractAddress: tx.ContractAddress.Hex(),
		UserAddress:     tx.UserAddress.Hex(),
		Type:            tx.Type,
		AmountIn:        tx.AmountIn.String(),
		AmountOut:       tx.AmountOut.String(),
		Timestamp:       tx.Timestamp,
		BlockNumber:     tx.BlockNumber,
		TxHash:          tx.TxHash.Hex(),
		LogIndex:        tx.LogIndex,
	}

	if tx.RelatedAddress != nil {
		related := tx.RelatedAddress.Hex()
		resp.RelatedAddress = &related
	}

	return resp
}
