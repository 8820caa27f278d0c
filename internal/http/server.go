package http

import (
	"context"
	"net/http"
	"time"
)

// NewServer arma el http.Server con timeouts sanos. El apagado ordenado lo
// coordina cmd/idp con el contexto de señales.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Shutdown drena conexiones con un tope de gracia.
func Shutdown(srv *http.Server, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(ctx)
}
