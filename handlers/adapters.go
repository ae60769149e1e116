package handlers

import (
	"net/http"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
)

// Adapters is a HTTP server for the adapter pool as a whole.
type Adapters struct {
	manager *adapters.Manager
}

type StatesJSON struct {
	Ready  bool                      `json:"ready"`
	States map[string]adapters.State `json:"states"`
}

func NewAdapters(manager *adapters.Manager) *Adapters {
	return &Adapters{manager}
}

func (s *Adapters) Refresh() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		s.manager.Refresh()
		rw.WriteHeader(http.StatusAccepted)
	})
}

func (s *Adapters) States() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		states := s.manager.States()
		res := StatesJSON{
			Ready:  s.manager.Ready(),
			States: make(map[string]adapters.State, len(states)),
		}
		for k, st := range states {
			res.States[k.String()] = st
		}
		handleJsonResponse(rw, http.StatusOK, res)
	})
}
