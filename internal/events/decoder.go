package events

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUnknownEvent is returned when a log's first topic matches none of the
// tracked event signatures.
var ErrUnknownEvent = errors.New("unknown event signature")

const (
	// Fixed-shape events: event signature topic + one indexed address, 32 bytes of data
	singleAddressTopics  = 2
	singleAmountDataSize = 32
	swappedTopics        = 4
	swappedDataSize      = 64
	deployedTopics       = 3
)

// Events with dynamic (string) arguments are unpacked through the ABI instead
// of by hand.
const (
	factoryABIJSON = `[{"type":"event","name":"ContractDeployed","inputs":[
		{"name":"contractId","type":"uint256","indexed":true},
		{"name":"contractAddress","type":"address","indexed":true},
		{"name":"maxSupply","type":"uint256","indexed":false},
		{"name":"name","type":"string","indexed":false},
		{"name":"symbol","type":"string","indexed":false}]}]`

	managerFactoryABIJSON = `[{"type":"event","name":"ManagerCreated","inputs":[
		{"name":"managerId","type":"uint256","indexed":true},
		{"name":"managerAddress","type":"address","indexed":true},
		{"name":"owner","type":"address","indexed":false},
		{"name":"name","type":"string","indexed":false}]}]`
)

// Decoder turns raw contract logs into typed events.
type Decoder struct {
	factoryABI        abi.ABI
	managerFactoryABI abi.ABI

	contractDeployedTopic common.Hash
	buyTokenTopic         common.Hash
	sellTokenTopic        common.Hash
	managerCreatedTopic   common.Hash
	depositTopic          common.Hash
	withdrawTopic         common.Hash
	investedTopic         common.Hash
	divestedTopic         common.Hash
	swappedTopic          common.Hash
}

// NewDecoder creates a decoder for all tracked event signatures.
func NewDecoder() (*Decoder, error) {
	factoryABI, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}

	managerFactoryABI, err := abi.JSON(strings.NewReader(managerFactoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manager factory ABI: %w", err)
	}

	return &Decoder{
		factoryABI:        factoryABI,
		managerFactoryABI: managerFactoryABI,

		contractDeployedTopic: crypto.Keccak256Hash([]byte("ContractDeployed(uint256,address,uint256,string,string)")),
		buyTokenTopic:         crypto.Keccak256Hash([]byte("BuyToken(address,uint256)")),
		sellTokenTopic:        crypto.Keccak256Hash([]byte("SellToken(address,uint256)")),
		managerCreatedTopic:   crypto.Keccak256Hash([]byte("ManagerCreated(uint256,address,address,string)")),
		depositTopic:          crypto.Keccak256Hash([]byte("Deposit(address,uint256)")),
		withdrawTopic:         crypto.Keccak256Hash([]byte("Withdraw(address,uint256)")),
		investedTopic:         crypto.Keccak256Hash([]byte("Invested(address,uint256)")),
		divestedTopic:         crypto.Keccak256Hash([]byte("Divested(address,uint256)")),
		swappedTopic:          crypto.Keccak256Hash([]byte("Swapped(address,address,address,uint256,uint256)")),
	}, nil
}

// Topics returns the first-topic hashes of all tracked events, for use in
// eth_getLogs filters.
func (d *Decoder) Topics() []common.Hash {
	return []common.Hash{
		d.contractDeployedTopic,
		d.buyTokenTopic,
		d.sellTokenTopic,
		d.managerCreatedTopic,
		d.depositTopic,
		d.withdrawTopic,
		d.investedTopic,
		d.divestedTopic,
		d.swappedTopic,
	}
}

// Decode turns a raw log plus its block timestamp into a typed event.
// Returns ErrUnknownEvent for logs whose signature is not tracked.
func (d *Decoder) Decode(l *types.Log, timestamp uint64) (Event, error) {
	if len(l.Topics) == 0 {
		return nil, ErrUnknownEvent
	}

	meta := Meta{
		Address:     l.Address,
		BlockNumber: l.BlockNumber,
		Timestamp:   timestamp,
		TxHash:      l.TxHash,
		LogIndex:    uint64(l.Index),
	}

	switch l.Topics[0] {
	case d.contractDeployedTopic:
		return d.parseContractDeployed(l, meta)
	case d.buyTokenTopic:
		addr, amount, err := parseAddressAmount(l, "BuyToken")
		if err != nil {
			return nil, err
		}
		return &BuyToken{Meta: meta, Buyer: addr, Amount: amount}, nil
	case d.sellTokenTopic:
		addr, amount, err := parseAddressAmount(l, "SellToken")
		if err != nil {
			return nil, err
		}
		return &SellToken{Meta: meta, Seller: addr, Amount: amount}, nil
	case d.managerCreatedTopic:
		return d.parseManagerCreated(l, meta)
	case d.depositTopic:
		addr, amount, err := parseAddressAmount(l, "Deposit")
		if err != nil {
			return nil, err
		}
		return &Deposit{Meta: meta, User: addr, Amount: amount}, nil
	case d.withdrawTopic:
		addr, amount, err := parseAddressAmount(l, "Withdraw")
		if err != nil {
			return nil, err
		}
		return &Withdraw{Meta: meta, User: addr, Amount: amount}, nil
	case d.investedTopic:
		addr, amount, err := parseAddressAmount(l, "Invested")
		if err != nil {
			return nil, err
		}
		return &Invested{Meta: meta, ProjectToken: addr, AmountTokenReceived: amount}, nil
	case d.divestedTopic:
		addr, amount, err := parseAddressAmount(l, "Divested")
		if err != nil {
			return nil, err
		}
		return &Divested{Meta: meta, ProjectToken: addr, AmountTokenSold: amount}, nil
	case d.swappedTopic:
		return parseSwapped(l, meta)
	default:
		return nil, ErrUnknownEvent
	}
}

// parseContractDeployed parses a product factory deployment event.
func (d *Decoder) parseContractDeployed(l *types.Log, meta Meta) (*ContractDeployed, error) {
	if len(l.Topics) != deployedTopics {
		return nil, fmt.Errorf("invalid ContractDeployed event: expected %d topics, got %d",
			deployedTopics, len(l.Topics))
	}

	values, err := d.factoryABI.Events["ContractDeployed"].Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ContractDeployed data: %w", err)
	}

	maxSupply, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("invalid ContractDeployed maxSupply: %T", values[0])
	}
	name, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("invalid ContractDeployed name: %T", values[1])
	}
	symbol, ok := values[2].(string)
	if !ok {
		return nil, fmt.Errorf("invalid ContractDeployed symbol: %T", values[2])
	}

	return &ContractDeployed{
		Meta:            meta,
		ContractID:      new(big.Int).SetBytes(l.Topics[1].Bytes()),
		ContractAddress: common.BytesToAddress(l.Topics[2].Bytes()),
		MaxSupply:       maxSupply,
		TokenName:       name,
		TokenSymbol:     symbol,
	}, nil
}

// parseManagerCreated parses a manager factory deployment event.
func (d *Decoder) parseManagerCreated(l *types.Log, meta Meta) (*ManagerCreated, error) {
	if len(l.Topics) != deployedTopics {
		return nil, fmt.Errorf("invalid ManagerCreated event: expected %d topics, got %d",
			deployedTopics, len(l.Topics))
	}

	values, err := d.managerFactoryABI.Events["ManagerCreated"].Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ManagerCreated data: %w", err)
	}

	owner, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("invalid ManagerCreated owner: %T", values[0])
	}
	name, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("invalid ManagerCreated name: %T", values[1])
	}

	return &ManagerCreated{
		Meta:           meta,
		ManagerID:      new(big.Int).SetBytes(l.Topics[1].Bytes()),
		ManagerAddress: common.BytesToAddress(l.Topics[2].Bytes()),
		Owner:          owner,
		ManagerName:    name,
	}, nil
}

// parseAddressAmount parses the shared (address indexed, uint256) event shape.
func parseAddressAmount(l *types.Log, name string) (common.Address, *big.Int, error) {
	if len(l.Topics) != singleAddressTopics {
		return common.Address{}, nil, fmt.Errorf("invalid %s event: expected %d topics, got %d",
			name, singleAddressTopics, len(l.Topics))
	}

	if len(l.Data) != singleAmountDataSize {
		return common.Address{}, nil, fmt.Errorf("invalid %s event: expected %d bytes of data, got %d",
			name, singleAmountDataSize, len(l.Data))
	}

	return common.BytesToAddress(l.Topics[1].Bytes()), new(big.Int).SetBytes(l.Data), nil
}

// parseSwapped parses a router swap event.
func parseSwapped(l *types.Log, meta Meta) (*Swapped, error) {
	if len(l.Topics) != swappedTopics {
		return nil, fmt.Errorf("invalid Swapped event: expected %d topics, got %d",
			swappedTopics, len(l.Topics))
	}

	if len(l.Data) != swappedDataSize {
		return nil, fmt.Errorf("invalid Swapped event: expected %d bytes of data, got %d",
			swappedDataSize, len(l.Data))
	}

	return &Swapped{
		Meta:      meta,
		User:      common.BytesToAddress(l.Topics[1].Bytes()),
		FromToken: common.BytesToAddress(l.Topics[2].Bytes()),
		ToToken:   common.BytesToAddress(l.Topics[3].Bytes()),
		AmountIn:  new(big.Int).SetBytes(l.Data[:singleAmountDataSize]),
		AmountOut: new(big.Int).SetBytes(l.Data[singleAmountDataSize:]),
	}, nil
}
