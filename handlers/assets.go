package handlers

import (
	"fmt"
	"net/http"

	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	"github.com/gorilla/mux"
)

// Assets is a HTTP server for the asset catalog.
type Assets struct {
	catalog *assets.Service
}

type AssetJSON struct {
	TokenQueryID string                `json:"tokenQueryId"`
	Blockchain   assets.BlockchainType `json:"blockchain,omitempty"`
	Name         string                `json:"name"`
	Code         string                `json:"code"`
	Decimals     int                   `json:"decimals"`
	Icon         string                `json:"icon,omitempty"`
}

func NewAssets(catalog *assets.Service) *Assets {
	return &Assets{catalog}
}

func toAssetJSON(t assets.Token) AssetJSON {
	return AssetJSON{
		TokenQueryID: t.Query.ID(),
		Blockchain:   t.Blockchain(),
		Name:         t.Name,
		Code:         t.Code,
		Decimals:     t.Decimals,
		Icon:         t.Icon,
	}
}

func (s *Assets) List() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		tt, err := s.catalog.ListTokens()
		if err != nil {
			handleError(rw, r, err)
			return
		}

		res := make([]AssetJSON, len(tt))
		for i, t := range tt {
			res[i] = toAssetJSON(t)
		}
		handleJsonResponse(rw, http.StatusOK, res)
	})
}

// Add inserts or updates a catalog entry.
func (s *Assets) Add() http.Handler {
	h := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req AssetJSON
		if err := decodeBody(r, &req); err != nil {
			handleError(rw, r, err)
			return
		}

		q, err := assets.ParseTokenQuery(req.TokenQueryID)
		if err != nil {
			handleError(rw, r, err)
			return
		}

		t := assets.Token{Query: q, Name: req.Name, Code: req.Code, Decimals: req.Decimals, Icon: req.Icon}
		if err := s.catalog.AddToken(t); err != nil {
			handleError(rw, r, &errors.RequestError{StatusCode: http.StatusBadRequest, Err: err})
			return
		}

		handleJsonResponse(rw, http.StatusCreated, toAssetJSON(t))
	})

	return UseJson(h)
}

// Remove deletes a catalog entry. Enabled wallets of the asset stay
// persisted and resolve through their snapshot, if any.
func (s *Assets) Remove() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		q, err := assets.ParseTokenQuery(mux.Vars(r)["tokenQueryId"])
		if err != nil {
			handleError(rw, r, err)
			return
		}

		if _, ok, err := s.catalog.Token(q); err != nil {
			handleError(rw, r, err)
			return
		} else if !ok {
			handleError(rw, r, &errors.RequestError{
				StatusCode: http.StatusNotFound,
				Err:        fmt.Errorf("asset %s not found", q),
			})
			return
		}

		if err := s.catalog.RemoveToken(q); err != nil {
			handleError(rw, r, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	})
}
