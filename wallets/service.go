package wallets

import (
	"context"
	"sync"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	log "github.com/sirupsen/logrus"
)

// AccountSource provides the active account and account deletions.
type AccountSource interface {
	SubscribeActiveAccount() (*events.Subscription[accounts.ActiveAccountEvent], error)
	SubscribeDeleted() *events.Subscription[accounts.Account]
}

// WalletStorage persists enabled wallets.
type WalletStorage interface {
	Wallets(account accounts.Account) ([]Wallet, error)
	// Handle persists save and del atomically.
	Handle(save, del []Wallet) error
	Clear() error
}

// Manager owns the live set of wallets of the active account.
//
// Every mutation of the live set happens under one lock. The resulting set
// is queued to subscribers before the lock is released, so subscribers see
// every transition in the order it was applied.
type Manager struct {
	accounts AccountSource
	storage  WalletStorage
	logger   *log.Logger

	mu      sync.Mutex
	account *accounts.Account
	active  []Wallet
	feed    events.Feed[[]Wallet]

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(accounts AccountSource, storage WalletStorage, opts ...ManagerOption) *Manager {
	m := &Manager{
		accounts: accounts,
		storage:  storage,
		logger:   log.StandardLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start populates the live set from the current active account and begins
// following active account changes. Calling Start more than once has no
// effect.
func (m *Manager) Start(ctx context.Context) error {
	var err error
	m.startOnce.Do(func() {
		var active *events.Subscription[accounts.ActiveAccountEvent]
		active, err = m.accounts.SubscribeActiveAccount()
		if err != nil {
			return
		}
		deleted := m.accounts.SubscribeDeleted()

		// The first event carries the current active account, populate the
		// live set before returning.
		select {
		case e, ok := <-active.C():
			if ok && e.Current {
				m.handleActiveAccount(e.Account)
			}
		case <-ctx.Done():
			active.Unsubscribe()
			deleted.Unsubscribe()
			err = ctx.Err()
			return
		}

		ctx, m.cancel = context.WithCancel(ctx)
		m.wg.Add(1)
		go m.run(ctx, active, deleted)
	})
	return err
}

// Stop stops following the active account and ends all subscriptions.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.feed.Close()
}

func (m *Manager) run(
	ctx context.Context,
	active *events.Subscription[accounts.ActiveAccountEvent],
	deleted *events.Subscription[accounts.Account],
) {
	defer m.wg.Done()
	defer active.Unsubscribe()
	defer deleted.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-active.C():
			if !ok {
				return
			}
			if e.Current {
				m.handleActiveAccount(e.Account)
			}
		case a, ok := <-deleted.C():
			if !ok {
				return
			}
			m.handleDeleted(a)
		}
	}
}

// ActiveWallets returns a snapshot of the live set.
func (m *Manager) ActiveWallets() []Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.active)
}

// ActiveAccount returns the account the live set belongs to.
func (m *Manager) ActiveAccount() *accounts.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return nil
	}
	a := *m.account
	return &a
}

// SubscribeActiveWallets registers a subscriber of live set changes. The
// current live set is delivered first, followed by every later transition.
func (m *Manager) SubscribeActiveWallets() *events.Subscription[[]Wallet] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed.SubscribeFrom(clone(m.active))
}

// Save persists ww. Wallets of the active account join the live set,
// wallets of other accounts are only persisted.
func (m *Manager) Save(ww []Wallet) error {
	return m.Handle(ww, nil)
}

// Delete removes ww from storage and from the live set. Wallets that are not
// enabled are ignored.
func (m *Manager) Delete(ww []Wallet) error {
	return m.Handle(nil, ww)
}

// Handle enables save and disables del in one step, emitting at most one
// change. Both are persisted atomically, on failure neither storage nor the
// live set changes.
func (m *Manager) Handle(save, del []Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.Handle(save, del); err != nil {
		m.logger.
			WithFields(log.Fields{"saved": Keys(save), "deleted": Keys(del), "error": err}).
			Error("error while persisting wallets")
		return err
	}

	next := clone(m.active)

	if m.account != nil {
		for _, w := range save {
			if w.Account.ID != m.account.ID || indexOf(next, w.Key()) >= 0 {
				continue
			}
			next = append(next, w)
		}
	}

	for _, w := range del {
		if i := indexOf(next, w.Key()); i >= 0 {
			next = append(next[:i], next[i+1:]...)
		}
	}

	m.setActive(next)

	return nil
}

func (m *Manager) handleActiveAccount(a *accounts.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.account = a

	if a == nil {
		m.setActive(nil)
		return
	}

	ww, err := m.storage.Wallets(*a)
	if err != nil {
		m.logger.
			WithFields(log.Fields{"account": a.ID, "error": err}).
			Error("error while loading wallets of active account")
		ww = nil
	}

	m.logger.
		WithFields(log.Fields{"account": a.ID, "wallets": len(ww)}).
		Info("Active account changed")

	m.setActive(ww)
}

func (m *Manager) handleDeleted(a accounts.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.account != nil && m.account.ID == a.ID {
		m.account = nil
	}

	next := make([]Wallet, 0, len(m.active))
	for _, w := range m.active {
		if w.Account.ID != a.ID {
			next = append(next, w)
		}
	}

	m.setActive(next)
}

// Clear removes the enabled wallets of every account and empties the live
// set.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.storage.Clear(); err != nil {
		m.logger.
			WithFields(log.Fields{"error": err}).
			Error("error while clearing wallets")
		return err
	}

	m.setActive(nil)

	return nil
}

// setActive replaces the live set and emits it when its membership changed.
// Must be called with m.mu held.
func (m *Manager) setActive(next []Wallet) {
	changed := !sameKeys(m.active, next)

	// Same wallets may carry an updated account
	m.active = next
	if !changed {
		return
	}

	m.feed.Send(clone(next))

	m.logger.
		WithFields(log.Fields{"wallets": len(next)}).
		Debug("Active wallets changed")
}

func clone(ww []Wallet) []Wallet {
	c := make([]Wallet, len(ww))
	copy(c, ww)
	return c
}

func indexOf(ww []Wallet, k Key) int {
	for i, w := range ww {
		if w.Key() == k {
			return i
		}
	}
	return -1
}

func sameKeys(a, b []Wallet) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[Key]struct{}, len(a))
	for _, w := range a {
		set[w.Key()] = struct{}{}
	}
	for _, w := range b {
		if _, ok := set[w.Key()]; !ok {
			return false
		}
	}
	return true
}
