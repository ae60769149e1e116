package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flow-hydraulics/wallet-orchestrator/datastore"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Manager is the single source of truth for the account catalog and for the
// active account of every level.
//
// Mutations are serialized by one lock. Change events are queued while the
// lock is held, so subscribers observe them in the order the changes were
// applied, and delivered asynchronously after it is released.
type Manager struct {
	store  Store
	logger *log.Logger

	mu           sync.Mutex
	currentLevel int
	active       events.Feed[ActiveAccountEvent]
	deleted      events.Feed[Account]
	list         events.Feed[[]Account]
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: log.StandardLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// CurrentLevel returns the level whose active account drives the active
// wallet set.
func (m *Manager) CurrentLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLevel
}

// SetCurrentLevel switches the current level and emits the active account of
// the new level.
func (m *Manager) SetCurrentLevel(level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentLevel == level {
		return nil
	}

	active, err := m.activeAccount(level)
	if err != nil {
		return err
	}

	m.currentLevel = level
	m.emitActive(level, active)
	m.emitAccounts()

	m.logger.
		WithFields(log.Fields{"level": level}).
		Info("Switched current level")

	return nil
}

// ActiveAccount returns the active account of the current level, nil if
// there is none.
func (m *Manager) ActiveAccount() (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeAccount(m.currentLevel)
}

// ActiveAccountAt returns the active account of a level, nil if there is
// none.
func (m *Manager) ActiveAccountAt(level int) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeAccount(level)
}

// SubscribeActiveAccount registers a subscriber of active account changes.
// The first delivered event is the active account of the current level at
// the time of subscribing.
func (m *Manager) SubscribeActiveAccount() (*events.Subscription[ActiveAccountEvent], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.activeAccount(m.currentLevel)
	if err != nil {
		return nil, err
	}

	return m.active.SubscribeFrom(ActiveAccountEvent{
		Level:   m.currentLevel,
		Account: active,
		Current: true,
	}), nil
}

// SubscribeDeleted registers a subscriber of account deletions.
func (m *Manager) SubscribeDeleted() *events.Subscription[Account] {
	return m.deleted.Subscribe()
}

// SubscribeAccounts registers a subscriber of the account list, the accounts
// with a level of at least the current level. The current list is delivered
// first, followed by the list after every change.
func (m *Manager) SubscribeAccounts() (*events.Subscription[[]Account], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	aa, err := m.List(m.currentLevel, -1, 0)
	if err != nil {
		return nil, err
	}
	return m.list.SubscribeFrom(aa), nil
}

// Accounts lists accounts with level >= minLevel, oldest first.
func (m *Manager) Accounts(minLevel int) ([]Account, error) {
	return m.List(minLevel, -1, 0)
}

func (m *Manager) List(minLevel, limit, offset int) ([]Account, error) {
	o := datastore.ParseListOptions(limit, offset)

	rr, err := m.store.Accounts(minLevel, o)
	if err != nil {
		return nil, err
	}

	aa := make([]Account, 0, len(rr))
	for _, r := range rr {
		a, err := r.account()
		if err != nil {
			m.logger.
				WithFields(log.Fields{"account": r.ID, "error": err}).
				Warn("skipping undecodable account")
			continue
		}
		aa = append(aa, a)
	}
	return aa, nil
}

func (m *Manager) Account(id string) (Account, error) {
	r, err := m.store.Account(id)
	if err != nil {
		return Account{}, err
	}
	return r.account()
}

// SetActive makes an account the active account of a level. Unknown ids are
// ignored. An empty id clears the active account of the level.
func (m *Manager) SetActive(id string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active *Account
	if id != "" {
		r, err := m.store.Account(id)
		if errors.Is(err, ErrAccountNotFound) {
			m.logger.
				WithFields(log.Fields{"account": id, "level": level}).
				Debug("ignoring activation of unknown account")
			return nil
		}
		if err != nil {
			return err
		}
		a, err := r.account()
		if err != nil {
			return err
		}
		active = &a
	}

	prev, err := m.store.ActiveAccountID(level)
	if err != nil {
		return err
	}
	if prev == id {
		return nil
	}

	if err := m.store.SetActiveAccountID(level, id); err != nil {
		return err
	}

	m.emitActive(level, active)

	return nil
}

// Save inserts or replaces an account. A new ID is assigned when the
// account has none. With updateActive the account also becomes the active
// account of its level.
func (m *Manager) Save(a *Account, updateActive bool) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Origin == "" {
		a.Origin = OriginCreated
	}

	r, err := newRecord(*a)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, err := m.store.ActiveAccountID(a.Level)
	if err != nil {
		return err
	}

	if err := m.store.SaveAccount(&r, updateActive); err != nil {
		return err
	}

	// Subscribers also get the updated account when it already was active
	if updateActive || prev == a.ID {
		saved := *a
		m.emitActive(a.Level, &saved)
	}
	m.emitAccounts()

	m.logger.
		WithFields(log.Fields{"account": a.ID, "level": a.Level, "activate": updateActive}).
		Debug("Saved account")

	return nil
}

// Delete removes an account and its enabled wallets. Unknown ids are
// ignored. When the account was active, the first remaining account of its
// level becomes active.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, activeChanged, err := m.store.DeleteAccount(id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	deleted, err := r.account()
	if err != nil {
		// Undecodable payload, subscribers only need the identity
		deleted = Account{ID: r.ID, Name: r.Name, Level: r.Level}
	}
	m.deleted.Send(deleted)

	if activeChanged {
		active, err := m.activeAccount(r.Level)
		if err != nil {
			return err
		}
		m.emitActive(r.Level, active)
	}
	m.emitAccounts()

	m.logger.
		WithFields(log.Fields{"account": id, "level": r.Level}).
		Info("Deleted account")

	return nil
}

// UpdateBackedUp flips the backup flags of an account.
func (m *Manager) UpdateBackedUp(id string, isBackedUp, isFileBackedUp bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.UpdateBackedUp(id, isBackedUp, isFileBackedUp); err != nil {
		return err
	}

	r, err := m.store.Account(id)
	if err != nil {
		return err
	}

	activeID, err := m.store.ActiveAccountID(r.Level)
	if err != nil {
		return err
	}
	if activeID == id {
		a, err := r.account()
		if err != nil {
			return err
		}
		m.emitActive(r.Level, &a)
	}
	m.emitAccounts()

	return nil
}

// UpdateLevels moves accounts to another level.
func (m *Manager) UpdateLevels(ids []string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	affected, err := m.store.UpdateLevels(ids, level)
	if err != nil {
		return err
	}

	for _, l := range affected {
		active, err := m.activeAccount(l)
		if err != nil {
			return err
		}
		m.emitActive(l, active)
	}
	m.emitAccounts()

	return nil
}

// Import inserts or replaces accounts, for example restored from a backup,
// in one transaction. Active accounts are left as they are. Imported
// accounts without an origin are marked restored.
func (m *Manager) Import(aa []Account) error {
	if len(aa) == 0 {
		return nil
	}

	rr := make([]AccountRecord, len(aa))
	for i := range aa {
		a := &aa[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Origin == "" {
			a.Origin = OriginRestored
		}
		r, err := newRecord(*a)
		if err != nil {
			return err
		}
		rr[i] = r
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ImportAccounts(rr); err != nil {
		return err
	}

	// An imported account may replace an active one
	for _, l := range levels(aa) {
		active, err := m.activeAccount(l)
		if err != nil {
			return err
		}
		if active != nil && containsID(aa, active.ID) {
			m.emitActive(l, active)
		}
	}
	m.emitAccounts()

	m.logger.
		WithFields(log.Fields{"accounts": len(aa)}).
		Info("Imported accounts")

	return nil
}

// Clear deletes every account together with its enabled wallets and clears
// the active account of every level.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted, cleared, err := m.store.Clear()
	if err != nil {
		return err
	}

	for _, r := range deleted {
		a, err := r.account()
		if err != nil {
			a = Account{ID: r.ID, Name: r.Name, Level: r.Level}
		}
		m.deleted.Send(a)
	}
	for _, l := range cleared {
		m.emitActive(l, nil)
	}
	m.emitAccounts()

	m.logger.
		WithFields(log.Fields{"accounts": len(deleted)}).
		Info("Cleared accounts")

	return nil
}

// Close ends all subscriptions.
func (m *Manager) Close() {
	m.active.Close()
	m.deleted.Close()
	m.list.Close()
}

func (m *Manager) activeAccount(level int) (*Account, error) {
	id, err := m.store.ActiveAccountID(level)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}

	r, err := m.store.Account(id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a, err := r.account()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// emitAccounts must be called with m.mu held.
func (m *Manager) emitAccounts() {
	aa, err := m.List(m.currentLevel, -1, 0)
	if err != nil {
		m.logger.
			WithFields(log.Fields{"error": err}).
			Warn("could not list accounts")
		return
	}
	m.list.Send(aa)
}

func levels(aa []Account) []int {
	var ll []int
	seen := make(map[int]bool)
	for _, a := range aa {
		if !seen[a.Level] {
			seen[a.Level] = true
			ll = append(ll, a.Level)
		}
	}
	return ll
}

func containsID(aa []Account, id string) bool {
	for _, a := range aa {
		if a.ID == id {
			return true
		}
	}
	return false
}

// emitActive must be called with m.mu held.
func (m *Manager) emitActive(level int, a *Account) {
	m.active.Send(ActiveAccountEvent{
		Level:   level,
		Account: a,
		Current: level == m.currentLevel,
	})
}

func newRecord(a Account) (AccountRecord, error) {
	code, data, err := encodeType(a.Type)
	if err != nil {
		return AccountRecord{}, err
	}
	return AccountRecord{
		ID:             a.ID,
		Name:           a.Name,
		TypeCode:       code,
		Data:           data,
		Origin:         a.Origin,
		Level:          a.Level,
		IsBackedUp:     a.IsBackedUp,
		IsFileBackedUp: a.IsFileBackedUp,
	}, nil
}

func (r AccountRecord) account() (Account, error) {
	t, err := DecodeType(r.TypeCode, r.Data)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", r.ID, err)
	}
	return Account{
		ID:             r.ID,
		Name:           r.Name,
		Type:           t,
		Origin:         r.Origin,
		Level:          r.Level,
		IsBackedUp:     r.IsBackedUp,
		IsFileBackedUp: r.IsFileBackedUp,
	}, nil
}
