package chains

import (
	"sync"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
)

// BalanceTracker implements adapters.BalanceAdapter for adapters that learn
// their state and balance from a sync loop. Nothing is published before the
// loop reports its first state, the seeded Syncing state is only visible
// through BalanceState.
type BalanceTracker struct {
	mu       sync.Mutex
	state    adapters.State
	balance  adapters.BalanceData
	reported bool
	feed     events.Feed[adapters.BalanceEvent]
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{state: adapters.Syncing(nil, nil)}
}

func (b *BalanceTracker) SetState(s adapters.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reported && b.state.Equal(s) {
		return
	}
	b.state = s
	b.reported = true
	b.feed.Send(adapters.BalanceEvent{State: b.state, Balance: b.balance})
}

func (b *BalanceTracker) SetBalance(d adapters.BalanceData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balance.Available.Equal(d.Available) && b.balance.Locked.Equal(d.Locked) {
		return
	}
	b.balance = d
	if !b.reported {
		// Goes out with the first state
		return
	}
	b.feed.Send(adapters.BalanceEvent{State: b.state, Balance: b.balance})
}

func (b *BalanceTracker) BalanceState() adapters.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *BalanceTracker) Balance() adapters.BalanceData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

// SubscribeBalance delivers the current state and balance first once the
// sync loop reported, then every change.
func (b *BalanceTracker) SubscribeBalance() *events.Subscription[adapters.BalanceEvent] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.reported {
		return b.feed.Subscribe()
	}
	return b.feed.SubscribeFrom(adapters.BalanceEvent{State: b.state, Balance: b.balance})
}

// Close ends all balance subscriptions.
func (b *BalanceTracker) Close() {
	b.feed.Close()
}
