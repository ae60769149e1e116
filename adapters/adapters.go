// Package adapters defines the capability surface of chain synchronization
// engines and owns one live adapter per active wallet.
package adapters

import (
	"context"

	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/shopspring/decimal"
)

// Adapter is a handle to a running chain synchronization engine.
type Adapter interface {
	// Start starts synchronizing in the background.
	Start() error
	// Stop cancels in-flight work and returns once all resources held by
	// the adapter are released.
	Stop()
	// Refresh requests a new synchronization pass.
	Refresh(ctx context.Context) error
	// DebugInfo returns free-form status information.
	DebugInfo() string
	// Capabilities returns the capabilities the adapter provides.
	Capabilities() Capabilities
}

// Capabilities holds typed handles for the optional capabilities of an
// adapter. A nil handle means the capability is not provided.
type Capabilities struct {
	Balance      BalanceAdapter
	Receive      ReceiveAdapter
	Transactions TransactionsAdapter
}

type BalanceData struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

func (b BalanceData) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// BalanceEvent is emitted whenever the state or the balance changes.
type BalanceEvent struct {
	State   State
	Balance BalanceData
}

type BalanceAdapter interface {
	BalanceState() State
	Balance() BalanceData
	// SubscribeBalance delivers the current state and balance first.
	SubscribeBalance() *events.Subscription[BalanceEvent]
}

type UsedAddress struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
}

type ReceiveAdapter interface {
	ReceiveAddress() string
	IsMainNet() bool
	IsAddressActive(ctx context.Context, address string) (bool, error)
	UsedAddresses(change bool) []UsedAddress
}

// ReceiveDefaults can be embedded by receive adapters of chains that cannot
// tell whether an address is active or enumerate used addresses.
type ReceiveDefaults struct{}

func (ReceiveDefaults) IsAddressActive(context.Context, string) (bool, error) {
	return true, nil
}

func (ReceiveDefaults) UsedAddresses(bool) []UsedAddress {
	return nil
}

// Factory constructs the adapter of a wallet.
type Factory interface {
	Create(ctx context.Context, w wallets.Wallet) (Adapter, error)
}

type FactoryFunc func(ctx context.Context, w wallets.Wallet) (Adapter, error)

func (f FactoryFunc) Create(ctx context.Context, w wallets.Wallet) (Adapter, error) {
	return f(ctx, w)
}
