package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tokenbay/p2p-ledger/internal/events"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

// ErrUnknownContract signals an event emitted by a contract the ledger does
// not track: a factory-shaped event from the wrong factory, or a token or
// manager event from an address no deployment event introduced. The caller
// skips the event.
var ErrUnknownContract = errors.New("event from untracked contract")

// Dispatcher routes one decoded event to exactly one reducer transition,
// resolving the emitting contract's role first. Factories and the router are
// fixed by configuration; token sale and manager contracts are discovered
// dynamically through their deployment events, so membership is checked
// against the derived tables.
type Dispatcher struct {
	reducer *Reducer

	productFactory common.Address
	managerFactory common.Address
	swapRouter     common.Address

	log *logger.Logger
}

// NewDispatcher creates a dispatcher for the given contract topology.
func NewDispatcher(
	reducer *Reducer,
	productFactory, managerFactory, swapRouter common.Address,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		reducer:        reducer,
		productFactory: productFactory,
		managerFactory: managerFactory,
		swapRouter:     swapRouter,
		log:            log,
	}
}

// Dispatch routes the event to its transition. Any transition failure
// propagates unwrapped; there is no recovery here.
func (d *Dispatcher) Dispatch(s Store, ev events.Event) error {
	meta := ev.EventMeta()

	switch e := ev.(type) {
	case *events.ContractDeployed:
		if meta.Address != d.productFactory {
			return fmt.Errorf("ContractDeployed from %s: %w", meta.Address.Hex(), ErrUnknownContract)
		}
		return d.reducer.ProductDeployed(s, e)

	case *events.BuyToken:
		if err := d.requireProduct(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Buy(s, e)

	case *events.SellToken:
		if err := d.requireProduct(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Sell(s, e)

	case *events.ManagerCreated:
		if meta.Address != d.managerFactory {
			return fmt.Errorf("ManagerCreated from %s: %w", meta.Address.Hex(), ErrUnknownContract)
		}
		return d.reducer.ManagerDeployed(s, e)

	case *events.Deposit:
		if err := d.requireManager(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Deposit(s, e)

	case *events.Withdraw:
		if err := d.requireManager(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Withdraw(s, e)

	case *events.Invested:
		if err := d.requireManager(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Invested(s, e)

	case *events.Divested:
		if err := d.requireManager(s, meta.Address); err != nil {
			return err
		}
		return d.reducer.Divested(s, e)

	case *events.Swapped:
		if meta.Address != d.swapRouter {
			return fmt.Errorf("Swapped from %s: %w", meta.Address.Hex(), ErrUnknownContract)
		}
		return d.reducer.Swapped(s, e)

	default:
		return fmt.Errorf("no transition for event %s", ev.Name())
	}
}

// requireProduct checks that the emitting address is a known token sale contract.
func (d *Dispatcher) requireProduct(s Store, addr common.Address) error {
	product, err := s.FindProduct(AddressKey(addr))
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("token event from %s: %w", addr.Hex(), ErrUnknownContract)
	}
	return nil
}

// requireManager checks that the emitting address is a known manager contract.
func (d *Dispatcher) requireManager(s Store, addr common.Address) error {
	manager, err := s.FindManager(AddressKey(addr))
	if err != nil {
		return err
	}
	if manager == nil {
		return fmt.Errorf("manager event from %s: %w", addr.Hex(), ErrUnknownContract)
	}
	return nil
}
