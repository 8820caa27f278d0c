package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/campuskit/idp/internal/app"
	httpx "github.com/campuskit/idp/internal/http"
	"github.com/campuskit/idp/internal/keys"
)

type oidcMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// NewOIDCDiscoveryHandler publica el documento de configuración OIDC.
// Usa el issuer configurado y arma las URLs absolutas para los endpoints.
func NewOIDCDiscoveryHandler(c *app.Container) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET/HEAD", 1001)
			return
		}

		iss := strings.TrimRight(c.Issuer.Iss, "/")
		meta := oidcMetadata{
			Issuer:                iss,
			AuthorizationEndpoint: iss + "/oauth/authorize",
			TokenEndpoint:         iss + "/oauth/token",
			UserinfoEndpoint:      iss + "/oauth/userinfo",
			IntrospectionEndpoint: iss + "/oauth/introspect",
			RevocationEndpoint:    iss + "/oauth/revoke",
			JWKSURI:               iss + "/.well-known/jwks.json",

			// Solo Authorization Code (con PKCE obligatorio) + refresh
			ResponseTypesSupported: []string{"code"},
			GrantTypesSupported:    []string{"authorization_code", "refresh_token"},
			SubjectTypesSupported:  []string{"public"},

			IDTokenSigningAlgValuesSupported: []string{keys.Alg},

			TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},

			// PKCE S256, plain no se acepta
			CodeChallengeMethodsSupported: []string{"S256"},

			ScopesSupported: []string{"openid", "email", "profile", "offline_access"},
			ClaimsSupported: []string{
				"iss", "sub", "aud", "exp", "iat", "nbf",
				"nonce", "auth_time", "at_hash", "azp",
				"name", "email", "email_verified",
			},
		}

		// Cache razonable (los clientes suelen cachear discovery por un rato)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		w.Header().Set("Expires", time.Now().Add(10*time.Minute).UTC().Format(http.TimeFormat))

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, meta)
	})
}
