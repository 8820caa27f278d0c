// Package token firma y verifica los JWT del IdP (access e ID tokens).
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campuskit/idp/internal/keys"
	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/validation"
)

var ErrInvalidToken = errors.New("token: invalid or expired")

// Issuer firma tokens usando la pareja RSA del Key Manager.
type Issuer struct {
	Iss       string        // "iss"
	Keys      *keys.Keypair // clave de firma, inmutable post-arranque
	AccessTTL time.Duration // TTL de Access/ID (default 1h)
}

func NewIssuer(iss string, kp *keys.Keypair, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &Issuer{Iss: iss, Keys: kp, AccessTTL: accessTTL}
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = i.Keys.KID()
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Private())
}

// IssueAccess emite un Access Token con los claims estándar del core:
// sub, client_id, scope, iss, iat, nbf, exp, jti.
func (i *Issuer) IssueAccess(userID, clientID, scope string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       userID,
		"client_id": clientID,
		"scope":     scope,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	}
	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueID emite un ID Token OIDC: aud=client_id, nonce solo si vino en la
// request original, auth_time, at_hash del access recién emitido, y claims
// de perfil/email gateados por scope.
func (i *Issuer) IssueID(user *core.User, clientID, scope, nonce string, authTime time.Time, accessToken string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       user.ID,
		"aud":       clientID,
		"azp":       clientID,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"auth_time": authTime.UTC().Unix(),
		"at_hash":   atHash(accessToken),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	scopes := validation.SplitScope(scope)
	if validation.HasScope(scopes, "profile") && user.Name != "" {
		claims["name"] = user.Name
	}
	if validation.HasScope(scopes, "email") {
		claims["email"] = user.Email
		claims["email_verified"] = user.EmailVerified
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc retorna siempre la única clave pública. Una sola pareja
// clave/algoritmo: "alg":"none" y la confusión de algoritmos quedan
// rechazados por construcción.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		return i.Keys.Public(), nil
	}
}

// Verify valida firma (RS256 only), iss y exp, y devuelve las claims.
// Cualquier fallo colapsa en ErrInvalidToken: no se filtra el motivo.
func (i *Issuer) Verify(raw string) (jwtv5.MapClaims, error) {
	tok, err := jwtv5.Parse(raw, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{keys.Alg}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// atHash = base64url( left-most 128 bits of SHA-256(access_token) )
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]) // 16 bytes
}
