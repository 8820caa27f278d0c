package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/clients"
)

// NewOAuthIntrospectHandler implementa RFC 7662. Cualquier token que no sea
// verificable responde {"active":false} sin distinguir el motivo: expirado,
// revocado o inventado se ven idénticos desde fuera.
func NewOAuthIntrospectHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2301)
			return
		}
		setNoStore(w)

		ctx := r.Context()
		clientID, clientSecret := clientCredentials(r)
		if _, err := c.Registry.Authenticate(ctx, clientID, clientSecret); err != nil {
			if errors.Is(err, clients.ErrInvalidClient) {
				writeInvalidClient(w, r, 2302)
				return
			}
			writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2303)
			return
		}

		token := strings.TrimSpace(r.PostForm.Get("token"))
		if token == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "token es obligatorio", 2304)
			return
		}
		hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))

		inactive := map[string]any{"active": false}

		// ───────────────── access token (JWT) ─────────────────
		asAccess := func() (map[string]any, bool) {
			claims, err := c.Issuer.Verify(token)
			if err != nil {
				return nil, false
			}
			return map[string]any{
				"active":     true,
				"token_type": "Bearer",
				"iss":        claims["iss"],
				"sub":        claims["sub"],
				"client_id":  claims["client_id"],
				"scope":      claims["scope"],
				"exp":        claims["exp"],
				"iat":        claims["iat"],
				"jti":        claims["jti"],
			}, true
		}

		// ───────────────── refresh token (opaco) ─────────────────
		asRefresh := func() (map[string]any, bool, error) {
			rt, ok, err := c.Refresh.Introspect(ctx, token)
			if err != nil || !ok {
				return nil, false, err
			}
			return map[string]any{
				"active":     true,
				"token_type": "refresh_token",
				"sub":        rt.UserID,
				"client_id":  rt.ClientID,
				"scope":      rt.Scope,
				"exp":        rt.ExpiresAt.Unix(),
				"iat":        rt.CreatedAt.Unix(),
			}, true, nil
		}

		// El hint (o la pinta del token: un JWT siempre lleva puntos) decide
		// qué se intenta primero, pero no limita la búsqueda: si el primer
		// tipo no encuentra nada se prueba el otro (RFC 7662 §2.1).
		var resp map[string]any
		var found bool
		if hint == "refresh_token" || (hint == "" && !strings.Contains(token, ".")) {
			r, ok, err := asRefresh()
			if err != nil {
				writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2305)
				return
			}
			resp, found = r, ok
			if !found {
				resp, found = asAccess()
			}
		} else {
			resp, found = asAccess()
			if !found {
				r, ok, err := asRefresh()
				if err != nil {
					writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2305)
					return
				}
				resp, found = r, ok
			}
		}
		if !found {
			writeJSON(w, http.StatusOK, inactive)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
