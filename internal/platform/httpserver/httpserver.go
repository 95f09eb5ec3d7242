package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server for the audit API. Response bodies are bounded
// by the store page limit; the timeouts assume small payloads.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
