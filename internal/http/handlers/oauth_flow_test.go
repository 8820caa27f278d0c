package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/cache"
	"github.com/campuskit/idp/internal/clients"
	"github.com/campuskit/idp/internal/codes"
	"github.com/campuskit/idp/internal/keys"
	"github.com/campuskit/idp/internal/refresh"
	"github.com/campuskit/idp/internal/security/pkce"
	"github.com/campuskit/idp/internal/security/secret"
	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/store/memory"
	"github.com/campuskit/idp/internal/token"
)

const (
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testRedirect = "https://app.example.com/cb"
	testClientID = "web-app"
	testSecret   = "s3cr3t"
	testUserID   = "user-1"
)

// parámetros livianos: el costo de argon2id no aporta nada a estos tests
var fastParams = secret.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type testEnv struct {
	c    *app.Container
	repo *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	hash, err := secret.Hash(fastParams, testSecret)
	require.NoError(t, err)
	require.NoError(t, repo.CreateClient(ctx, &core.Client{
		ClientID:        testClientID,
		Name:            "Web App",
		SecretHash:      hash,
		ApplicationType: "web",
		RedirectURIs:    []string{testRedirect},
		Scopes:          []string{"openid", "profile", "email"},
	}))
	require.NoError(t, repo.CreateClient(ctx, &core.Client{
		ClientID:        "other-client",
		SecretHash:      hash,
		ApplicationType: "web",
		RedirectURIs:    []string{"https://other.example.com/cb"},
	}))
	require.NoError(t, repo.CreateUser(ctx, &core.User{
		ID:            testUserID,
		Email:         "ana@example.com",
		EmailVerified: true,
		Name:          "Ana",
	}))

	kp, err := keys.Generate(2048)
	require.NoError(t, err)

	cc := cache.NewMemory("", time.Minute)
	return &testEnv{
		repo: repo,
		c: &app.Container{
			Store:    repo,
			Cache:    cc,
			Issuer:   token.NewIssuer("https://idp.test", kp, time.Hour),
			Registry: clients.NewRegistry(repo),
			Codes:    codes.New(cc, 2*time.Minute),
			Refresh:  refresh.NewEngine(repo, time.Hour),
		},
	}
}

func (e *testEnv) issueCode(t *testing.T, scope, nonce string) string {
	t.Helper()
	code, err := e.c.Codes.Issue(context.Background(), codes.Record{
		UserID:          testUserID,
		ClientID:        testClientID,
		RedirectURI:     testRedirect,
		Scope:           scope,
		Nonce:           nonce,
		CodeChallenge:   pkce.Challenge(testVerifier),
		ChallengeMethod: pkce.MethodS256,
	})
	require.NoError(t, err)
	return code
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
	return m
}

func exchangeForm(code string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {testClientID},
		"client_secret": {testSecret},
		"code":          {code},
		"redirect_uri":  {testRedirect},
		"code_verifier": {testVerifier},
	}
}

// ───────────────── authorization_code ─────────────────

func TestTokenEndpoint_CodeExchange(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid profile email", "n-1")
	rr := postForm(h, exchangeForm(code))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	body := decodeJSON(t, rr)
	require.Equal(t, "Bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.NotEmpty(t, body["id_token"])
	require.Equal(t, "openid profile email", body["scope"])
	require.InDelta(t, 3600, body["expires_in"], 5)

	// el access verifica contra el issuer y trae los claims del core
	claims, err := env.c.Issuer.Verify(body["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, testUserID, claims["sub"])
	require.Equal(t, testClientID, claims["client_id"])

	idClaims, err := env.c.Issuer.Verify(body["id_token"].(string))
	require.NoError(t, err)
	require.Equal(t, "n-1", idClaims["nonce"])
	require.Equal(t, testClientID, idClaims["aud"])
	require.Equal(t, "ana@example.com", idClaims["email"])
}

func TestTokenEndpoint_NoIDTokenWithoutOpenID(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "profile", "")
	rr := postForm(h, exchangeForm(code))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeJSON(t, rr)
	require.NotEmpty(t, body["access_token"])
	_, hasID := body["id_token"]
	require.False(t, hasID, "sin scope openid no hay id_token")
}

func TestTokenEndpoint_CodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid", "")
	require.Equal(t, http.StatusOK, postForm(h, exchangeForm(code)).Code)

	rr := postForm(h, exchangeForm(code))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])
}

func TestTokenEndpoint_PKCEMismatch(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid", "")
	form := exchangeForm(code)
	form.Set("code_verifier", strings.Repeat("x", 43))
	rr := postForm(h, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])

	// y el code quedó quemado: el verifier correcto ya no sirve
	rr = postForm(h, exchangeForm(code))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTokenEndpoint_PKCEVerifierOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid", "")
	form := exchangeForm(code)
	form.Set("code_verifier", "corto")
	rr := postForm(h, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeJSON(t, rr)["error"])
}

func TestTokenEndpoint_RedirectMismatch(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid", "")
	form := exchangeForm(code)
	form.Set("redirect_uri", "https://evil.example.com/cb")
	rr := postForm(h, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])
}

func TestTokenEndpoint_InvalidClient(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	code := env.issueCode(t, "openid", "")
	form := exchangeForm(code)
	form.Set("client_secret", "wrong")
	rr := postForm(h, form)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid_client", decodeJSON(t, rr)["error"])
}

func TestTokenEndpoint_BasicAuthChallenge(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	form := url.Values{"grant_type": {"authorization_code"}, "code": {"x"},
		"redirect_uri": {testRedirect}, "code_verifier": {testVerifier}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, "wrong")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
}

func TestTokenEndpoint_UnsupportedGrant(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	rr := postForm(h, url.Values{
		"grant_type":    {"password"},
		"client_id":     {testClientID},
		"client_secret": {testSecret},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "unsupported_grant_type", decodeJSON(t, rr)["error"])
}

// ───────────────── refresh_token ─────────────────

func refreshForm(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {testClientID},
		"client_secret": {testSecret},
		"refresh_token": {refreshToken},
	}
}

func (e *testEnv) exchange(t *testing.T, scope string) map[string]any {
	t.Helper()
	h := NewOAuthTokenHandler(e.c)
	rr := postForm(h, exchangeForm(e.issueCode(t, scope, "")))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeJSON(t, rr)
}

func TestTokenEndpoint_RefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	first := env.exchange(t, "openid profile")
	r1 := first["refresh_token"].(string)

	rr := postForm(h, refreshForm(r1))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	r2 := body["refresh_token"].(string)
	require.NotEqual(t, r1, r2, "la rotación debe emitir un refresh nuevo")
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["id_token"], "el grant original pidió openid")

	// el viejo quedó superseded
	rr = postForm(h, refreshForm(r1))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])

	// y el reuso mató también al sucesor
	rr = postForm(h, refreshForm(r2))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])
}

func TestTokenEndpoint_RefreshScopeNarrowing(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	first := env.exchange(t, "openid profile email")
	r1 := first["refresh_token"].(string)

	form := refreshForm(r1)
	form.Set("scope", "openid email")
	rr := postForm(h, form)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "openid email", decodeJSON(t, rr)["scope"])
}

func TestTokenEndpoint_RefreshScopeExceeded(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	first := env.exchange(t, "openid")
	r1 := first["refresh_token"].(string)

	form := refreshForm(r1)
	form.Set("scope", "openid admin")
	rr := postForm(h, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_scope", decodeJSON(t, rr)["error"])

	// pedir de más no quemó el token
	rr = postForm(h, refreshForm(r1))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestTokenEndpoint_RefreshKeepsOriginalAuthTime(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	authTime := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Second)
	code, err := env.c.Codes.Issue(context.Background(), codes.Record{
		UserID:          testUserID,
		ClientID:        testClientID,
		RedirectURI:     testRedirect,
		Scope:           "openid",
		AuthTime:        authTime,
		CodeChallenge:   pkce.Challenge(testVerifier),
		ChallengeMethod: pkce.MethodS256,
	})
	require.NoError(t, err)

	rr := postForm(h, exchangeForm(code))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeJSON(t, rr)

	idClaims, err := env.c.Issuer.Verify(first["id_token"].(string))
	require.NoError(t, err)
	require.EqualValues(t, authTime.Unix(), idClaims["auth_time"])

	// la rotación no re-autentica: auth_time no se mueve al momento del refresh
	rr = postForm(h, refreshForm(first["refresh_token"].(string)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rotClaims, err := env.c.Issuer.Verify(decodeJSON(t, rr)["id_token"].(string))
	require.NoError(t, err)
	require.EqualValues(t, authTime.Unix(), rotClaims["auth_time"])
}

func TestTokenEndpoint_RefreshNoIDTokenWithoutOpenID(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthTokenHandler(env.c)

	first := env.exchange(t, "profile")
	rr := postForm(h, refreshForm(first["refresh_token"].(string)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	_, hasID := decodeJSON(t, rr)["id_token"]
	require.False(t, hasID)
}

// ───────────────── introspection ─────────────────

func introspectForm(tok, hint string) url.Values {
	v := url.Values{
		"client_id":     {testClientID},
		"client_secret": {testSecret},
		"token":         {tok},
	}
	if hint != "" {
		v.Set("token_type_hint", hint)
	}
	return v
}

func TestIntrospect_AccessToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)

	body := env.exchange(t, "openid profile")
	rr := postForm(h, introspectForm(body["access_token"].(string), ""))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeJSON(t, rr)
	require.Equal(t, true, resp["active"])
	require.Equal(t, testUserID, resp["sub"])
	require.Equal(t, testClientID, resp["client_id"])
	require.Equal(t, "openid profile", resp["scope"])
	require.Equal(t, "Bearer", resp["token_type"])
}

func TestIntrospect_RefreshToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)

	body := env.exchange(t, "openid")
	rr := postForm(h, introspectForm(body["refresh_token"].(string), "refresh_token"))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeJSON(t, rr)
	require.Equal(t, true, resp["active"])
	require.Equal(t, "refresh_token", resp["token_type"])
	require.Equal(t, testUserID, resp["sub"])
}

func TestIntrospect_UniformInactive(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)
	tokenH := NewOAuthTokenHandler(env.c)

	// inventado, expirado y revocado responden exactamente igual
	for _, tok := range []string{"garbage", strings.Repeat("r", 43)} {
		resp := decodeJSON(t, postForm(h, introspectForm(tok, "")))
		require.Equal(t, map[string]any{"active": false}, resp)
	}

	// refresh rotado: inactivo sin metadata adicional
	body := env.exchange(t, "openid")
	r1 := body["refresh_token"].(string)
	require.Equal(t, http.StatusOK, postForm(tokenH, refreshForm(r1)).Code)

	resp := decodeJSON(t, postForm(h, introspectForm(r1, "refresh_token")))
	require.Equal(t, map[string]any{"active": false}, resp)
}

func TestIntrospect_HintMismatchExtendsSearch(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)

	body := env.exchange(t, "openid")

	// un hint equivocado no limita la búsqueda: el refresh sigue activo
	resp := decodeJSON(t, postForm(h, introspectForm(body["refresh_token"].(string), "access_token")))
	require.Equal(t, true, resp["active"])
	require.Equal(t, "refresh_token", resp["token_type"])

	// y viceversa: un access con hint refresh_token también resuelve
	resp = decodeJSON(t, postForm(h, introspectForm(body["access_token"].(string), "refresh_token")))
	require.Equal(t, true, resp["active"])
	require.Equal(t, "Bearer", resp["token_type"])
}

// brokenTokenRepo: la lectura por hash falla como si el pool estuviera caído.
type brokenTokenRepo struct {
	core.TokenRepository
}

func (brokenTokenRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (*core.RefreshToken, error) {
	return nil, errors.New("pool: connection refused")
}

func TestIntrospect_StoreDownIs503(t *testing.T) {
	env := newTestEnv(t)
	env.c.Refresh = refresh.NewEngine(brokenTokenRepo{memory.New()}, time.Hour)
	h := NewOAuthIntrospectHandler(env.c)

	rr := postForm(h, introspectForm(strings.Repeat("r", 43), "refresh_token"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "temporarily_unavailable", decodeJSON(t, rr)["error"])
}

func TestIntrospect_RequiresClientAuth(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)

	rr := postForm(h, url.Values{"token": {"whatever"}})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIntrospect_MissingToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewOAuthIntrospectHandler(env.c)

	rr := postForm(h, url.Values{
		"client_id":     {testClientID},
		"client_secret": {testSecret},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decodeJSON(t, rr)["error"])
}

// ───────────────── revocation ─────────────────

func revokeForm(tok string) url.Values {
	return url.Values{
		"client_id":     {testClientID},
		"client_secret": {testSecret},
		"token":         {tok},
	}
}

func TestRevoke_RefreshFamilyDies(t *testing.T) {
	env := newTestEnv(t)
	revokeH := NewOAuthRevokeHandler(env.c)
	tokenH := NewOAuthTokenHandler(env.c)

	body := env.exchange(t, "openid")
	r1 := body["refresh_token"].(string)

	rr := postForm(revokeH, revokeForm(r1))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// el refresh revocado ya no rota
	rr = postForm(tokenH, refreshForm(r1))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// revocar de nuevo sigue siendo 200
	require.Equal(t, http.StatusOK, postForm(revokeH, revokeForm(r1)).Code)
	// y un token que nunca existió también
	require.Equal(t, http.StatusOK, postForm(revokeH, revokeForm(strings.Repeat("z", 43))).Code)
}

func TestRevoke_CrossClientRejected(t *testing.T) {
	env := newTestEnv(t)
	revokeH := NewOAuthRevokeHandler(env.c)

	body := env.exchange(t, "openid")
	r1 := body["refresh_token"].(string)

	form := revokeForm(r1)
	form.Set("client_id", "other-client")
	rr := postForm(revokeH, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, rr)["error"])

	// el token del dueño sigue vivo
	introspectH := NewOAuthIntrospectHandler(env.c)
	resp := decodeJSON(t, postForm(introspectH, introspectForm(r1, "refresh_token")))
	require.Equal(t, true, resp["active"])
}

func TestRevoke_AccessTokenNoop(t *testing.T) {
	env := newTestEnv(t)
	revokeH := NewOAuthRevokeHandler(env.c)

	body := env.exchange(t, "openid")
	access := body["access_token"].(string)

	// access propio: 200 (stateless, nada que tachar)
	require.Equal(t, http.StatusOK, postForm(revokeH, revokeForm(access)).Code)

	// access ajeno: mismo endurecimiento que con refresh
	form := revokeForm(access)
	form.Set("client_id", "other-client")
	rr := postForm(revokeH, form)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// un JWT roto es un 200 silencioso
	require.Equal(t, http.StatusOK, postForm(revokeH, revokeForm("a.b.c")).Code)
}

// ───────────────── userinfo ─────────────────

func getUserInfo(h http.HandlerFunc, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUserInfo_OK(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserInfoHandler(env.c)

	access, _, err := env.c.Issuer.IssueAccess(testUserID, testClientID, "openid profile email")
	require.NoError(t, err)

	rr := getUserInfo(h, access)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeJSON(t, rr)
	require.Equal(t, testUserID, resp["sub"])
	require.Equal(t, "Ana", resp["name"])
	require.Equal(t, "ana@example.com", resp["email"])
	require.Equal(t, true, resp["email_verified"])
}

func TestUserInfo_ScopeGating(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserInfoHandler(env.c)

	access, _, err := env.c.Issuer.IssueAccess(testUserID, testClientID, "openid")
	require.NoError(t, err)

	resp := decodeJSON(t, getUserInfo(h, access))
	require.Equal(t, testUserID, resp["sub"])
	_, hasEmail := resp["email"]
	_, hasName := resp["name"]
	require.False(t, hasEmail)
	require.False(t, hasName)
}

func TestUserInfo_RequiresOpenID(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserInfoHandler(env.c)

	access, _, err := env.c.Issuer.IssueAccess(testUserID, testClientID, "profile")
	require.NoError(t, err)

	rr := getUserInfo(h, access)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "insufficient_scope", decodeJSON(t, rr)["error"])
}

func TestUserInfo_MissingOrBadToken(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserInfoHandler(env.c)

	rr := getUserInfo(h, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	rr = getUserInfo(h, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

// ───────────────── discovery / jwks ─────────────────

func TestDiscovery_Document(t *testing.T) {
	env := newTestEnv(t)
	h := NewOIDCDiscoveryHandler(env.c)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Cache-Control"), "max-age=600")

	doc := decodeJSON(t, rr)
	require.Equal(t, "https://idp.test", doc["issuer"])
	require.Equal(t, "https://idp.test/oauth/token", doc["token_endpoint"])
	require.Equal(t, "https://idp.test/.well-known/jwks.json", doc["jwks_uri"])
	require.Equal(t, []any{"code"}, doc["response_types_supported"])
	require.Equal(t, []any{"S256"}, doc["code_challenge_methods_supported"])
	require.Equal(t, []any{"RS256"}, doc["id_token_signing_alg_values_supported"])
	require.ElementsMatch(t, []any{"authorization_code", "refresh_token"}, doc["grant_types_supported"])
}

func TestJWKS_ServesPublicSet(t *testing.T) {
	env := newTestEnv(t)
	h := NewJWKSHandler(env.c.Issuer.Keys.JWKSJSON())

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	doc := decodeJSON(t, rr)
	ks := doc["keys"].([]any)
	require.Len(t, ks, 1)
	k := ks[0].(map[string]any)
	require.Equal(t, "RSA", k["kty"])
	require.Equal(t, env.c.Issuer.Keys.KID(), k["kid"])
	require.NotContains(t, k, "d")
	require.NotContains(t, k, "p")
	require.NotContains(t, k, "q")
}
