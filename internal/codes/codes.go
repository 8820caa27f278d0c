// Package codes implementa el Authorization Code Store: codes opacos de un
// solo uso, atados a client, user, redirect_uri, scope, nonce y challenge PKCE.
package codes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/campuskit/idp/internal/cache"
	"github.com/campuskit/idp/internal/security/pkce"
	tokens "github.com/campuskit/idp/internal/security/token"
	"github.com/campuskit/idp/internal/validation"
)

// ErrInvalidGrant cubre uniformemente: code inexistente, expirado, ya usado,
// client/redirect que no coinciden o PKCE que no verifica. No se filtra cuál.
var ErrInvalidGrant = errors.New("codes: invalid grant")

// ErrInvalidScope: algún scope del record no cumple la gramática de RFC 6749.
var ErrInvalidScope = errors.New("codes: scope malformado")

// Record es lo que queda atado al code entre authorize y token.
type Record struct {
	UserID          string    `json:"user_id"`
	ClientID        string    `json:"client_id"`
	RedirectURI     string    `json:"redirect_uri"`
	Scope           string    `json:"scope"`
	Nonce           string    `json:"nonce,omitempty"`
	CodeChallenge   string    `json:"code_challenge"`
	ChallengeMethod string    `json:"code_challenge_method"`
	AuthTime        time.Time `json:"auth_time"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type Store struct {
	cache cache.Client
	ttl   time.Duration
}

func New(c cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Store{cache: c, ttl: ttl}
}

func cacheKey(code string) string {
	// En cache solo vive el hash del code, nunca el code plano.
	return "oauth:code:" + tokens.SHA256Base64URL(code)
}

// Issue genera un code criptográficamente aleatorio (43 chars base64url)
// y persiste el record con el TTL del store.
func (s *Store) Issue(ctx context.Context, rec Record) (string, error) {
	if rec.ChallengeMethod != pkce.MethodS256 || rec.CodeChallenge == "" {
		return "", pkce.ErrUnsupportedMethod
	}
	for _, sc := range validation.SplitScope(rec.Scope) {
		if !validation.ValidScopeName(sc) {
			return "", ErrInvalidScope
		}
	}
	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	rec.ExpiresAt = time.Now().UTC().Add(s.ttl)
	if rec.AuthTime.IsZero() {
		rec.AuthTime = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, cacheKey(code), string(b), s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Consume valida y quema el code en un solo paso. El GetDel del cache es
// atómico: dos exchanges concurrentes del mismo code, uno solo obtiene el
// record. Cualquier validación que falle después del GetDel deja el code
// quemado igual (un code tocado es un code muerto).
func (s *Store) Consume(ctx context.Context, code, clientID, redirectURI, verifier string) (*Record, error) {
	raw, err := s.cache.GetDel(ctx, cacheKey(code))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, ErrInvalidGrant
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrInvalidGrant
	}
	if rec.ClientID != clientID || rec.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}
	if err := pkce.Verify(verifier, rec.CodeChallenge, rec.ChallengeMethod); err != nil {
		// Verifier fuera de rango es invalid_request (RFC 7636); el resto
		// colapsa en invalid_grant.
		if errors.Is(err, pkce.ErrInvalidVerifier) {
			return nil, err
		}
		return nil, ErrInvalidGrant
	}
	return &rec, nil
}
