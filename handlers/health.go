package handlers

import (
	"net/http"
)

// Ready answers 200 once every adapter of the active wallet set reported
// its first state, 503 before that.
func Ready(ready func() bool) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !ready() {
			status = http.StatusServiceUnavailable
		}
		handleJsonResponse(rw, status, map[string]bool{"ready": status == http.StatusOK})
	})
}

func Liveness(getLiveness func() (interface{}, error)) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		liveness, err := getLiveness()
		if err != nil {
			handleError(rw, r, err)
			return
		}
		handleJsonResponse(rw, http.StatusOK, liveness)
	})
}
