package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/audit"
	"github.com/campuskit/idp/internal/clients"
	"github.com/campuskit/idp/internal/codes"
	"github.com/campuskit/idp/internal/metrics"
	"github.com/campuskit/idp/internal/refresh"
	"github.com/campuskit/idp/internal/security/pkce"
	"github.com/campuskit/idp/internal/validation"
	"go.uber.org/zap"
)

func NewOAuthTokenHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		// OAuth2: application/x-www-form-urlencoded
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2201)
			return
		}
		// Evitar cache en respuestas con tokens
		setNoStore(w)

		ctx := r.Context()
		grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))

		clientID, clientSecret := clientCredentials(r)
		cl, err := c.Registry.Authenticate(ctx, clientID, clientSecret)
		if err != nil {
			if errors.Is(err, clients.ErrInvalidClient) {
				writeInvalidClient(w, r, 2202)
				return
			}
			writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2203)
			return
		}

		switch grantType {

		// ───────────────── authorization_code + PKCE ─────────────────
		case "authorization_code":
			code := strings.TrimSpace(r.PostForm.Get("code"))
			redirectURI := strings.TrimSpace(r.PostForm.Get("redirect_uri"))
			codeVerifier := strings.TrimSpace(r.PostForm.Get("code_verifier"))

			if code == "" || redirectURI == "" || codeVerifier == "" {
				writeOAuthError(w, http.StatusBadRequest, "invalid_request", "faltan parámetros", 2204)
				return
			}

			// Consumir el code (1 uso, atómico) + validar redirect/PKCE
			rec, err := c.Codes.Consume(ctx, code, cl.ClientID, redirectURI, codeVerifier)
			if err != nil {
				switch {
				case errors.Is(err, pkce.ErrInvalidVerifier):
					writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_verifier fuera de rango", 2205)
				case errors.Is(err, codes.ErrInvalidGrant):
					writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code inválido", 2206)
				default:
					writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2207)
				}
				return
			}

			access, exp, err := c.Issuer.IssueAccess(rec.UserID, cl.ClientID, rec.Scope)
			if err != nil {
				writeOAuthError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir el access token", 2208)
				return
			}

			resp := map[string]any{
				"token_type":   "Bearer",
				"expires_in":   int64(time.Until(exp).Seconds()),
				"access_token": access,
				"scope":        rec.Scope,
			}

			// ID Token solo con scope openid
			if validation.HasScope(validation.SplitScope(rec.Scope), "openid") {
				user, err := c.Store.GetUserByID(ctx, rec.UserID)
				if err != nil {
					writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "sujeto desconocido", 2209)
					return
				}
				idToken, _, err := c.Issuer.IssueID(user, cl.ClientID, rec.Scope, rec.Nonce, rec.AuthTime, access)
				if err != nil {
					writeOAuthError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir el id_token", 2210)
					return
				}
				resp["id_token"] = idToken
			}

			g, err := c.Refresh.Issue(ctx, cl.ClientID, rec.UserID, rec.Scope, rec.AuthTime)
			if err != nil {
				writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "no se pudo persistir refresh", 2211)
				return
			}
			resp["refresh_token"] = g.Plain

			metrics.TokensIssued.WithLabelValues("authorization_code").Inc()
			audit.Log(ctx, audit.EventTokenIssued,
				zap.String("grant_type", "authorization_code"),
				zap.String("client_id", cl.ClientID),
				zap.String("sub", rec.UserID),
			)
			writeJSON(w, http.StatusOK, resp)

		// ───────────────── refresh_token (rotación) ─────────────────
		case "refresh_token":
			refreshToken := strings.TrimSpace(r.PostForm.Get("refresh_token"))
			if refreshToken == "" {
				writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token es obligatorio", 2220)
				return
			}
			requestedScope := strings.TrimSpace(r.PostForm.Get("scope"))

			g, err := c.Refresh.Rotate(ctx, refreshToken, cl.ClientID, requestedScope)
			if err != nil {
				switch {
				case errors.Is(err, refresh.ErrInvalidScope):
					writeOAuthError(w, http.StatusBadRequest, "invalid_scope", "scope excede el otorgado", 2221)
				case errors.Is(err, refresh.ErrInvalidGrant):
					writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh inválido", 2222)
				default:
					writeOAuthError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "store no disponible", 2223)
				}
				return
			}

			access, exp, err := c.Issuer.IssueAccess(g.Record.UserID, cl.ClientID, g.Record.Scope)
			if err != nil {
				writeOAuthError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir access", 2224)
				return
			}

			resp := map[string]any{
				"token_type":    "Bearer",
				"expires_in":    int64(time.Until(exp).Seconds()),
				"access_token":  access,
				"refresh_token": g.Plain,
				"scope":         g.Record.Scope,
			}

			// ID token de nuevo solo si el grant original pidió openid
			if validation.HasScope(validation.SplitScope(g.Record.Scope), "openid") {
				user, err := c.Store.GetUserByID(ctx, g.Record.UserID)
				if err == nil {
					// auth_time heredado de la autenticación original, no
					// del momento de rotación
					if idToken, _, err := c.Issuer.IssueID(user, cl.ClientID, g.Record.Scope, "", g.Record.AuthTime, access); err == nil {
						resp["id_token"] = idToken
					}
				}
			}

			metrics.TokensIssued.WithLabelValues("refresh_token").Inc()
			audit.Log(ctx, audit.EventTokenRotated,
				zap.String("client_id", cl.ClientID),
				zap.String("sub", g.Record.UserID),
				zap.Int("generation", g.Record.Generation),
			)
			writeJSON(w, http.StatusOK, resp)

		default:
			writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type no soportado", 2230)
		}
	}
}
