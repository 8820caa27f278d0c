package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/audit"
	"github.com/campuskit/idp/internal/clients"
	"github.com/campuskit/idp/internal/metrics"
	"github.com/campuskit/idp/internal/refresh"
	"go.uber.org/zap"
)

// NewOAuthRevokeHandler implementa RFC 7009 con una desviación deliberada:
// si el token existe pero pertenece a OTRO cliente respondemos 400
// invalid_grant en vez del 200 silencioso que pide la RFC. Preferimos que un
// cliente mal configurado falle ruidosamente a que crea haber revocado algo.
func NewOAuthRevokeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2401)
			return
		}
		setNoStore(w)

		ctx := r.Context()
		clientID, clientSecret := clientCredentials(r)
		cl, err := c.Registry.Authenticate(ctx, clientID, clientSecret)
		if err != nil {
			if errors.Is(err, clients.ErrInvalidClient) {
				writeInvalidClient(w, r, 2402)
				return
			}
			writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2403)
			return
		}

		token := strings.TrimSpace(r.PostForm.Get("token"))
		if token == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "token es obligatorio", 2404)
			return
		}

		// ───────────────── access token (JWT) ─────────────────
		// Los access son stateless: no hay nada que tachar. Validamos la
		// propiedad para devolver el mismo invalid_grant que con refresh
		// ajenos; un JWT roto o expirado es un 200 vacío.
		if strings.Contains(token, ".") {
			claims, err := c.Issuer.Verify(token)
			if err == nil {
				if owner, _ := claims["client_id"].(string); owner != "" && owner != cl.ClientID {
					writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "el token pertenece a otro cliente", 2405)
					return
				}
			}
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}

		// ───────────────── refresh token (opaco) ─────────────────
		revoked, err := c.Refresh.Revoke(ctx, token, cl.ClientID)
		if err != nil {
			if errors.Is(err, refresh.ErrOwnershipMismatch) {
				writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "el token pertenece a otro cliente", 2406)
				return
			}
			writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2407)
			return
		}
		if revoked {
			metrics.TokensRevoked.Inc()
			audit.Log(ctx, audit.EventTokenRevoked, zap.String("client_id", cl.ClientID))
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	}
}
