package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
)

// Alg es el único algoritmo de firma del IdP. Una sola pareja clave/algoritmo
// por construcción: nada de "alg":"none" ni confusión de algoritmos.
const Alg = "RS256"

var (
	ErrNoKeyMaterial = errors.New("keys: no hay material de clave configurado")
	ErrBadPEM        = errors.New("keys: PEM inválido o no es una clave RSA")
)

// Keypair mantiene la pareja RSA cargada al arranque. Inmutable después de
// construida; segura para lectura concurrente sin locks.
type Keypair struct {
	priv *rsa.PrivateKey
	kid  string
}

// Load carga la clave privada desde un path o desde PEM inline.
// Falla rápido: sin clave no hay IdP.
func Load(privateKeyPath, privateKeyPEM string) (*Keypair, error) {
	var raw []byte
	switch {
	case privateKeyPEM != "":
		raw = []byte(privateKeyPEM)
	case privateKeyPath != "":
		b, err := os.ReadFile(privateKeyPath)
		if err != nil {
			return nil, err
		}
		raw = b
	default:
		return nil, ErrNoKeyMaterial
	}
	return ParsePEM(raw)
}

// ParsePEM decodifica una clave privada RSA en formato PKCS#1 o PKCS#8.
func ParsePEM(raw []byte) (*Keypair, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, ErrBadPEM
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return fromPrivate(k)
	}
	if any, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if k, ok := any.(*rsa.PrivateKey); ok {
			return fromPrivate(k)
		}
	}
	return nil, ErrBadPEM
}

// Generate crea una pareja RSA en memoria (CLI y tests).
func Generate(bits int) (*Keypair, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return fromPrivate(k)
}

func fromPrivate(k *rsa.PrivateKey) (*Keypair, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return &Keypair{priv: k, kid: deriveKID(&k.PublicKey)}, nil
}

// deriveKID deriva un identificador estable de la clave pública:
// base64url(sha256(n))[:16]. Determinístico: mismo módulo, mismo kid.
func deriveKID(pub *rsa.PublicKey) string {
	sum := sha256.Sum256(pub.N.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:])[:16]
}

// KID retorna el identificador estable de la clave activa.
func (k *Keypair) KID() string { return k.kid }

// Private retorna la clave de firma (solo para el codec de tokens).
func (k *Keypair) Private() *rsa.PrivateKey { return k.priv }

// Public retorna la clave de verificación.
func (k *Keypair) Public() *rsa.PublicKey { return &k.priv.PublicKey }

// PrivatePEM serializa la clave privada en PKCS#1 (para cmd/idpkeys).
func (k *Keypair) PrivatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(k.priv),
	})
}

// ----- JWKS (serialización) -----

// JWK expone solo componentes públicos. Nunca d/p/q/dp/dq/qi.
type JWK struct {
	Kty string `json:"kty"` // "RSA"
	Use string `json:"use"` // "sig"
	Alg string `json:"alg"` // "RS256"
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url(modulus)
	E   string `json:"e"` // base64url(exponent)
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWK retorna la representación JWK de la clave pública.
func (k *Keypair) PublicJWK() JWK {
	pub := k.Public()
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: Alg,
		Kid: k.kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// JWKSJSON devuelve el JWKS (solo la pública) en JSON.
func (k *Keypair) JWKSJSON() []byte {
	b, _ := json.Marshal(JWKS{Keys: []JWK{k.PublicJWK()}})
	return b
}
