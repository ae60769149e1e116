package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	"github.com/gorilla/mux"
)

// Accounts is a HTTP server for account management.
type Accounts struct {
	manager *accounts.Manager
}

// AccountRequest represents a JSON payload for creating an account.
type AccountRequest struct {
	Name     string          `json:"name"`
	Level    int             `json:"level"`
	Origin   accounts.Origin `json:"origin"`
	Activate bool            `json:"activate"`
	Type     AccountTypeJSON `json:"type"`
}

type AccountTypeJSON struct {
	Code accounts.TypeCode `json:"code"`
	Data json.RawMessage   `json:"data"`
}

// AccountJSON is the account representation returned to clients. Key
// material is never included.
type AccountJSON struct {
	accounts.Account
	Type    accounts.TypeCode `json:"type"`
	IsWatch bool              `json:"isWatch"`
}

func NewAccounts(manager *accounts.Manager) *Accounts {
	return &Accounts{manager}
}

func toAccountJSON(a accounts.Account) AccountJSON {
	res := AccountJSON{Account: a, IsWatch: a.IsWatch()}
	if a.Type != nil {
		res.Type = a.Type.Code()
	}
	return res
}

func (s *Accounts) List() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		minLevel, _ := strconv.Atoi(r.FormValue("minLevel"))

		limit, err := strconv.Atoi(r.FormValue("limit"))
		if err != nil {
			limit = 0
		}

		offset, err := strconv.Atoi(r.FormValue("offset"))
		if err != nil {
			offset = 0
		}

		aa, err := s.manager.List(minLevel, limit, offset)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		res := make([]AccountJSON, len(aa))
		for i, a := range aa {
			res[i] = toAccountJSON(a)
		}

		handleJsonResponse(rw, http.StatusOK, res)
	})
}

func (s *Accounts) Create() http.Handler {
	h := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req AccountRequest
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		t, err := accounts.DecodeType(req.Type.Code, req.Type.Data)
		if err != nil {
			handleError(rw, r, &errors.RequestError{StatusCode: http.StatusBadRequest, Err: err})
			return
		}

		a := accounts.Account{
			Name:   req.Name,
			Type:   t,
			Origin: req.Origin,
			Level:  req.Level,
		}
		if err := s.manager.Save(&a, req.Activate); err != nil {
			handleError(rw, r, err)
			return
		}

		handleJsonResponse(rw, http.StatusCreated, toAccountJSON(a))
	})

	return UseJson(h)
}

func (s *Accounts) Delete() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.manager.Delete(id); err != nil {
			handleError(rw, r, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}

// Activate makes the account the active account of its level.
func (s *Accounts) Activate() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		a, err := s.manager.Account(id)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if err := s.manager.SetActive(a.ID, a.Level); err != nil {
			handleError(rw, r, err)
			return
		}

		handleJsonResponse(rw, http.StatusOK, toAccountJSON(a))
	})
}

// Active returns the active account of the current level.
func (s *Accounts) Active() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a, err := s.manager.ActiveAccount()
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if a == nil {
			handleError(rw, r, &errors.RequestError{
				StatusCode: http.StatusNotFound,
				Err:        fmt.Errorf("no active account on level %d", s.manager.CurrentLevel()),
			})
			return
		}

		handleJsonResponse(rw, http.StatusOK, toAccountJSON(*a))
	})
}
