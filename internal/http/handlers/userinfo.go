package handlers

import (
	"net/http"
	"strings"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/validation"
)

// NewUserInfoHandler sirve /oauth/userinfo (OIDC Core §5.3). Autoriza con el
// access token Bearer; los claims devueltos dependen de los scopes del token,
// no de lo que el usuario tenga en base.
func NewUserInfoHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET o POST", 1000)
			return
		}
		setNoStore(w)

		raw := bearerToken(r)
		if raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
			writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "falta el Bearer token", 2501)
			return
		}
		claims, err := c.Issuer.Verify(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="invalid_token"`)
			writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "access token inválido", 2502)
			return
		}

		scope, _ := claims["scope"].(string)
		scopes := validation.SplitScope(scope)
		if !validation.HasScope(scopes, "openid") {
			w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="insufficient_scope", scope="openid"`)
			writeOAuthError(w, http.StatusForbidden, "insufficient_scope", "se requiere scope openid", 2503)
			return
		}

		sub, _ := claims["sub"].(string)
		user, err := c.Store.GetUserByID(r.Context(), sub)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="invalid_token"`)
			writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "sujeto desconocido", 2504)
			return
		}

		resp := map[string]any{"sub": user.ID}
		if validation.HasScope(scopes, "profile") && user.Name != "" {
			resp["name"] = user.Name
		}
		if validation.HasScope(scopes, "email") {
			resp["email"] = user.Email
			resp["email_verified"] = user.EmailVerified
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
