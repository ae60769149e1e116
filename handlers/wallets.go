package handlers

import (
	"fmt"
	"net/http"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Wallets is a HTTP server for the wallets of the active account and their
// adapters.
type Wallets struct {
	wallets  *wallets.Manager
	catalog  assets.Catalog
	adapters *adapters.Manager
}

// WalletRequest selects an asset. Name, Code and Decimals describe custom
// tokens that are not in the asset catalog.
type WalletRequest struct {
	TokenQueryID string `json:"tokenQueryId"`
	Name         string `json:"name,omitempty"`
	Code         string `json:"code,omitempty"`
	Decimals     int    `json:"decimals,omitempty"`
}

type WalletsRequest struct {
	Wallets []WalletRequest `json:"wallets"`
}

type WalletJSON struct {
	ID           string                `json:"id"`
	TokenQueryID string                `json:"tokenQueryId"`
	AccountID    string                `json:"accountId"`
	Blockchain   assets.BlockchainType `json:"blockchain"`
	Name         string                `json:"name"`
	Code         string                `json:"code"`
	Decimals     int                   `json:"decimals"`
	State        *adapters.State       `json:"state,omitempty"`
}

type BalanceJSON struct {
	State     adapters.State  `json:"state"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

type ReceiveAddressJSON struct {
	Address   string `json:"address"`
	IsMainNet bool   `json:"isMainNet"`
}

var errNoActiveAccount = &errors.RequestError{StatusCode: http.StatusConflict, Err: fmt.Errorf("no active account")}

func NewWallets(wm *wallets.Manager, catalog assets.Catalog, am *adapters.Manager) *Wallets {
	return &Wallets{wm, catalog, am}
}

func (s *Wallets) toJSON(w wallets.Wallet) WalletJSON {
	res := WalletJSON{
		ID:           w.Key().String(),
		TokenQueryID: w.Token.Query.ID(),
		AccountID:    w.Account.ID,
		Blockchain:   w.Blockchain(),
		Name:         w.Token.Name,
		Code:         w.Token.Code,
		Decimals:     w.Token.Decimals,
	}
	if st, ok := s.adapters.State(w); ok {
		res.State = &st
	}
	return res
}

// List returns the wallets of the active account.
func (s *Wallets) List() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := s.wallets.ActiveWallets()
		res := make([]WalletJSON, len(ww))
		for i, w := range ww {
			res[i] = s.toJSON(w)
		}
		handleJsonResponse(rw, http.StatusOK, res)
	})
}

// Enable enables assets for the active account.
func (s *Wallets) Enable() http.Handler {
	h := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww, err := s.requestedWallets(r, true)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if err := s.wallets.Save(ww); err != nil {
			handleError(rw, r, err)
			return
		}

		res := make([]WalletJSON, len(ww))
		for i, w := range ww {
			res[i] = s.toJSON(w)
		}
		handleJsonResponse(rw, http.StatusCreated, res)
	})

	return UseJson(h)
}

// Disable disables assets of the active account.
func (s *Wallets) Disable() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww, err := s.requestedWallets(r, false)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if err := s.wallets.Delete(ww); err != nil {
			handleError(rw, r, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

// requestedWallets builds the wallets of the active account named in the
// request body. With resolve, every asset must be in the catalog or be
// described as a custom token.
func (s *Wallets) requestedWallets(r *http.Request, resolve bool) ([]wallets.Wallet, error) {
	var req WalletsRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	account := s.wallets.ActiveAccount()
	if account == nil {
		return nil, errNoActiveAccount
	}

	queries := make([]assets.TokenQuery, len(req.Wallets))
	for i, wr := range req.Wallets {
		q, err := assets.ParseTokenQuery(wr.TokenQueryID)
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}

	var resolved map[string]assets.Token
	if resolve {
		var err error
		if resolved, err = s.catalog.Tokens(queries); err != nil {
			return nil, err
		}
	}

	ww := make([]wallets.Wallet, len(queries))
	for i, q := range queries {
		t, ok := resolved[q.ID()]
		if !ok {
			t = assets.Token{Query: q, Name: req.Wallets[i].Name, Code: req.Wallets[i].Code, Decimals: req.Wallets[i].Decimals}
			if resolve && t.Name == "" {
				return nil, &errors.RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("unknown asset %q", q.ID())}
			}
		}
		ww[i] = wallets.New(t, *account)
	}

	return ww, nil
}

func (s *Wallets) find(r *http.Request) (wallets.Wallet, error) {
	key, err := wallets.ParseKey(mux.Vars(r)["walletId"])
	if err != nil {
		return wallets.Wallet{}, &errors.RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}
	for _, w := range s.wallets.ActiveWallets() {
		if w.Key() == key {
			return w, nil
		}
	}
	return wallets.Wallet{}, &errors.RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("wallet %s not found", key)}
}

func notAvailable(w wallets.Wallet, what string) error {
	return &errors.RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("%s of wallet %s not available", what, w.Key())}
}

func (s *Wallets) State() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w, err := s.find(r)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		st, ok := s.adapters.State(w)
		if !ok {
			handleError(rw, r, notAvailable(w, "state"))
			return
		}

		handleJsonResponse(rw, http.StatusOK, st)
	})
}

func (s *Wallets) Balance() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w, err := s.find(r)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		b, ok := s.adapters.BalanceAdapter(w)
		if !ok {
			handleError(rw, r, notAvailable(w, "balance"))
			return
		}

		data := b.Balance()
		handleJsonResponse(rw, http.StatusOK, BalanceJSON{
			State:     b.BalanceState(),
			Available: data.Available,
			Locked:    data.Locked,
			Total:     data.Total(),
		})
	})
}

func (s *Wallets) ReceiveAddress() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w, err := s.find(r)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		ra, ok := s.adapters.ReceiveAdapter(w)
		if !ok {
			handleError(rw, r, notAvailable(w, "receive address"))
			return
		}

		handleJsonResponse(rw, http.StatusOK, ReceiveAddressJSON{
			Address:   ra.ReceiveAddress(),
			IsMainNet: ra.IsMainNet(),
		})
	})
}

// Refresh refreshes the adapter of a wallet, or retries its construction.
func (s *Wallets) Refresh() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w, err := s.find(r)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		s.adapters.RefreshByWallet(w)

		rw.WriteHeader(http.StatusAccepted)
	})
}
