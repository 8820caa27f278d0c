package handlers

import (
	"net/http"
)

// NewJWKSHandler sirve el set de claves públicas. El JSON se serializa una
// sola vez al arrancar; rotar claves implica reiniciar el proceso. Los
// headers de cache los pone la ruta.
func NewJWKSHandler(jwksJSON []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	}
}
