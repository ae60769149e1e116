package wallets

import (
	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	log "github.com/sirupsen/logrus"
)

// Storage maps enabled wallet records to wallets and back.
type Storage struct {
	store   Store
	catalog assets.Catalog
	logger  *log.Logger
}

func NewStorage(store Store, catalog assets.Catalog, opts ...StorageOption) *Storage {
	s := &Storage{
		store:   store,
		catalog: catalog,
		logger:  log.StandardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Wallets loads the enabled wallets of an account. Records are resolved
// through the asset catalog and fall back to their snapshot. Records that
// resolve to nothing are skipped but kept, they may resolve once the
// catalog is updated.
func (s *Storage) Wallets(account accounts.Account) ([]Wallet, error) {
	rr, err := s.store.EnabledWallets(account.ID)
	if err != nil {
		return nil, err
	}

	queries := make([]assets.TokenQuery, 0, len(rr))
	for _, r := range rr {
		q, err := assets.ParseTokenQuery(r.TokenQueryID)
		if err != nil {
			continue
		}
		queries = append(queries, q)
	}

	resolved, err := s.catalog.Tokens(queries)
	if err != nil {
		s.logger.
			WithFields(log.Fields{"account": account.ID, "error": err}).
			Warn("asset catalog unavailable, using wallet snapshots")
		resolved = nil
	}

	ww := make([]Wallet, 0, len(rr))
	for _, r := range rr {
		token, ok := resolved[r.TokenQueryID]
		if !ok {
			token, ok = r.snapshot()
		}
		if !ok {
			s.logger.
				WithFields(log.Fields{"account": account.ID, "asset": r.TokenQueryID}).
				Debug("skipping unresolved enabled wallet")
			continue
		}
		ww = append(ww, Wallet{Token: token, Account: account})
	}

	return ww, nil
}

// Save upserts one record per wallet. Saving an already saved wallet keeps
// its order hint.
func (s *Storage) Save(ww []Wallet) error {
	return s.Handle(ww, nil)
}

// Delete removes the records of ww. Absent records are ignored.
func (s *Storage) Delete(ww []Wallet) error {
	return s.Handle(nil, ww)
}

// Handle saves save and deletes del atomically: either both are persisted
// or neither is.
func (s *Storage) Handle(save, del []Wallet) error {
	if len(save) == 0 && len(del) == 0 {
		return nil
	}
	return s.store.HandleEnabledWallets(s.records(save), Keys(del))
}

// Clear removes the enabled wallets of every account.
func (s *Storage) Clear() error {
	return s.store.ClearEnabledWallets()
}

func (s *Storage) records(ww []Wallet) []EnabledWallet {
	if len(ww) == 0 {
		return nil
	}

	queries := make([]assets.TokenQuery, len(ww))
	for i, w := range ww {
		queries[i] = w.Token.Query
	}

	resolved, err := s.catalog.Tokens(queries)
	if err != nil {
		// Snapshot everything rather than fail the write
		s.logger.
			WithFields(log.Fields{"error": err}).
			Warn("asset catalog unavailable, storing wallet snapshots")
		resolved = nil
	}

	rr := make([]EnabledWallet, len(ww))
	for i, w := range ww {
		r := EnabledWallet{
			TokenQueryID: w.Token.Query.ID(),
			AccountID:    w.Account.ID,
		}
		if _, ok := resolved[r.TokenQueryID]; !ok {
			r.setSnapshot(w.Token)
		}
		rr[i] = r
	}
	return rr
}

func (r *EnabledWallet) setSnapshot(t assets.Token) {
	name, code, decimals := t.Name, t.Code, t.Decimals
	r.CoinName = &name
	r.CoinCode = &code
	r.Decimals = &decimals
	if t.Icon != "" {
		icon := t.Icon
		r.Icon = &icon
	}
}

func (r EnabledWallet) snapshot() (assets.Token, bool) {
	if !r.hasSnapshot() {
		return assets.Token{}, false
	}
	q, err := assets.ParseTokenQuery(r.TokenQueryID)
	if err != nil {
		return assets.Token{}, false
	}
	t := assets.Token{
		Query:    q,
		Name:     *r.CoinName,
		Code:     *r.CoinCode,
		Decimals: *r.Decimals,
	}
	if r.Icon != nil {
		t.Icon = *r.Icon
	}
	return t, true
}
