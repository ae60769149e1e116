// Package handlers provides HTTP handlers over the account, wallet and
// adapter managers.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/errors"
	log "github.com/sirupsen/logrus"
)

var (
	EmptyBodyError   = &errors.RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("empty body")}
	InvalidBodyError = &errors.RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid body")}
)

// handleError is a helper function for unified HTTP error handling.
func handleError(rw http.ResponseWriter, r *http.Request, err error) {
	log.
		WithFields(log.Fields{"method": r.Method, "path": r.URL.Path, "error": err}).
		Warn("Error while handling request")

	var reqErr *errors.RequestError
	switch {
	case stderrors.As(err, &reqErr):
		http.Error(rw, reqErr.Error(), reqErr.StatusCode)
	case stderrors.Is(err, accounts.ErrAccountNotFound):
		http.Error(rw, err.Error(), http.StatusNotFound)
	case stderrors.Is(err, assets.ErrInvalidTokenQuery):
		http.Error(rw, err.Error(), http.StatusBadRequest)
	default:
		// Do not send data regarding the error
		http.Error(rw, "Error", http.StatusInternalServerError)
	}
}

// handleJsonResponse is a helper function for unified JSON response handling.
func handleJsonResponse(rw http.ResponseWriter, status int, res interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(res); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Error while encoding response")
	}
}

func checkNonEmptyBody(r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return EmptyBodyError
	}
	return nil
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := checkNonEmptyBody(r); err != nil {
		return err
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return InvalidBodyError
	}
	return nil
}
