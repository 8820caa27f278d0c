// Package pkce implementa la verificación S256 de RFC 7636.
// "plain" no se soporta: S256 es el único método aceptado.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	MethodS256 = "S256"

	// RFC 7636 §4.1: longitud del code_verifier
	minVerifierLen = 43
	maxVerifierLen = 128
)

var (
	ErrUnsupportedMethod = errors.New("pkce: code_challenge_method no soportado")
	ErrInvalidVerifier   = errors.New("pkce: code_verifier fuera de rango (43-128)")
)

// Challenge computa base64url(SHA256(verifier)), el formato que el client
// manda en la request de autorización.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify recomputa el challenge y compara en tiempo constante.
// method distinto de S256 falla siempre; el verifier debe medir 43-128.
func Verify(verifier, storedChallenge, method string) error {
	if method != MethodS256 {
		return ErrUnsupportedMethod
	}
	if len(verifier) < minVerifierLen || len(verifier) > maxVerifierLen {
		return ErrInvalidVerifier
	}
	computed := Challenge(verifier)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) != 1 {
		return errors.New("pkce: verifier no coincide con el challenge")
	}
	return nil
}
