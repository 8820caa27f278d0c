package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/campuskit/idp/internal/audit"
)

// clientCredentials extrae client_id/client_secret del header Basic o del
// body form. Ambos canales se aceptan idénticamente (RFC 6749 §2.3.1).
// Requiere r.ParseForm() previo.
func clientCredentials(r *http.Request) (clientID, clientSecret string) {
	if id, sec, ok := r.BasicAuth(); ok {
		// RFC 6749 apéndice B: las credenciales van url-encoded dentro de Basic
		if d, err := url.QueryUnescape(id); err == nil {
			id = d
		}
		if d, err := url.QueryUnescape(sec); err == nil {
			sec = d
		}
		return id, sec
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")),
		strings.TrimSpace(r.PostForm.Get("client_secret"))
}

// writeInvalidClient responde 401 invalid_client, con WWW-Authenticate si el
// intento vino por Basic.
func writeInvalidClient(w http.ResponseWriter, r *http.Request, errCode int) {
	if _, _, ok := r.BasicAuth(); ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth", charset="UTF-8"`)
	}
	audit.Log(r.Context(), audit.EventClientAuthFail)
	writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed", errCode)
}
