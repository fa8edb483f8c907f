package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Meta carries the on-chain coordinates every decoded event needs for record
// keys and audit fields.
type Meta struct {
	// Address is the contract that emitted the log
	Address common.Address

	BlockNumber uint64
	Timestamp   uint64
	TxHash      common.Hash
	LogIndex    uint64
}

// Event is a decoded contract log.
type Event interface {
	Name() string
	EventMeta() *Meta
}

// ContractDeployed is emitted by the product factory when a new token sale
// contract is deployed.
// ContractDeployed(uint256 indexed contractId, address indexed contractAddress, uint256 maxSupply, string name, string symbol)
type ContractDeployed struct {
	Meta

	ContractID      *big.Int
	ContractAddress common.Address
	MaxSupply       *big.Int
	TokenName       string
	TokenSymbol     string
}

func (e *ContractDeployed) Name() string    { return "ContractDeployed" }
func (e *ContractDeployed) EventMeta() *Meta { return &e.Meta }

// BuyToken is emitted by a token sale contract when tokens are minted to a buyer.
// BuyToken(address indexed transferTo, uint256 amount)
type BuyToken struct {
	Meta

	Buyer  common.Address
	Amount *big.Int
}

func (e *BuyToken) Name() string    { return "BuyToken" }
func (e *BuyToken) EventMeta() *Meta { return &e.Meta }

// SellToken is emitted by a token sale contract when tokens are burned from a seller.
// SellToken(address indexed transferFrom, uint256 amount)
type SellToken struct {
	Meta

	Seller common.Address
	Amount *big.Int
}

func (e *SellToken) Name() string    { return "SellToken" }
func (e *SellToken) EventMeta() *Meta { return &e.Meta }

// ManagerCreated is emitted by the manager factory when a new investment
// manager contract is deployed.
// ManagerCreated(uint256 indexed managerId, address indexed managerAddress, address owner, string name)
type ManagerCreated struct {
	Meta

	ManagerID      *big.Int
	ManagerAddress common.Address
	Owner          common.Address
	ManagerName    string
}

func (e *ManagerCreated) Name() string    { return "ManagerCreated" }
func (e *ManagerCreated) EventMeta() *Meta { return &e.Meta }

// Deposit is emitted by a manager contract when a user deposits funds.
// Deposit(address indexed user, uint256 amount)
type Deposit struct {
	Meta

	User   common.Address
	Amount *big.Int
}

func (e *Deposit) Name() string    { return "Deposit" }
func (e *Deposit) EventMeta() *Meta { return &e.Meta }

// Withdraw is emitted by a manager contract when a user withdraws funds.
// Withdraw(address indexed user, uint256 amount)
type Withdraw struct {
	Meta

	User   common.Address
	Amount *big.Int
}

func (e *Withdraw) Name() string    { return "Withdraw" }
func (e *Withdraw) EventMeta() *Meta { return &e.Meta }

// Invested is emitted by a manager contract when it buys into a project token.
// Invested(address indexed projectToken, uint256 amountTokenReceived)
type Invested struct {
	Meta

	ProjectToken        common.Address
	AmountTokenReceived *big.Int
}

func (e *Invested) Name() string    { return "Invested" }
func (e *Invested) EventMeta() *Meta { return &e.Meta }

// Divested is emitted by a manager contract when it sells out of a project token.
// Divested(address indexed projectToken, uint256 amountTokenSold)
type Divested struct {
	Meta

	ProjectToken    common.Address
	AmountTokenSold *big.Int
}

func (e *Divested) Name() string    { return "Divested" }
func (e *Divested) EventMeta() *Meta { return &e.Meta }

// Swapped is emitted by the swap router when a user swaps one token for another.
// Swapped(address indexed user, address indexed fromToken, address indexed toToken, uint256 amountIn, uint256 amountOut)
type Swapped struct {
	Meta

	User      common.Address
	FromToken common.Address
	ToToken   common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (e *Swapped) Name() string    { return "Swapped" }
func (e *Swapped) EventMeta() *Meta { return &e.Meta }
