package handlers

import (
	"net/http"

	"github.com/flow-hydraulics/wallet-orchestrator/handlers/middleware"
	gorilla "github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"
)

func UseCors(h http.Handler) http.Handler {
	return gorilla.CORS(
		gorilla.AllowedOrigins([]string{"*"}),
		gorilla.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
	)(h)
}

func UseLogging(logger *log.Logger, h http.Handler) http.Handler {
	return middleware.LoggingHandler(logger)(h)
}

func UseCompress(h http.Handler) http.Handler {
	return gorilla.CompressHandler(h)
}

func UseJson(h http.Handler) http.Handler {
	// Only PUT, POST, and PATCH requests are considered.
	return gorilla.ContentTypeHandler(h, "application/json")
}
