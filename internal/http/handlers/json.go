package handlers

import (
	"net/http"

	httpx "github.com/campuskit/idp/internal/http"
)

// writeOAuthError delega en httpx.WriteError. Alias local para que los
// handlers OAuth lean uniforme.
func writeOAuthError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	httpx.WriteError(w, status, code, desc, errCode)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	httpx.WriteJSON(w, status, v)
}

// setNoStore marca la respuesta como no cacheable. Toda respuesta que
// transporta tokens la lleva.
func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
