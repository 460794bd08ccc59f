package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultKeyBits is the modulus size used by GenerateKeyPair.
const DefaultKeyBits = 2048

type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// unescapePEM turns literal "\n" sequences into newlines so keys can be
// passed through single-line environment variables.
func unescapePEM(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimSpace(s), `\n`, "\n"))
}

// LoadKeyPair parses PEM encoded keys. The public key may be empty, in which
// case it is derived from the private key.
func LoadKeyPair(privatePEM, publicPEM string) (KeyPair, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(unescapePEM(privatePEM))
	if err != nil {
		return KeyPair{}, fmt.Errorf("parse private key: %w", err)
	}
	if strings.TrimSpace(publicPEM) == "" {
		return KeyPair{Private: priv, Public: &priv.PublicKey}, nil
	}

	pub, err := jwt.ParseRSAPublicKeyFromPEM(unescapePEM(publicPEM))
	if err != nil {
		return KeyPair{}, fmt.Errorf("parse public key: %w", err)
	}
	if !priv.PublicKey.Equal(pub) {
		return KeyPair{}, fmt.Errorf("public key does not match private key")
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// GenerateKeyPair returns a new RSA key pair as PKCS#8 and SPKI PEM.
func GenerateKeyPair(bits int) (privatePEM, publicPEM string, err error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM, nil
}

// EscapePEM is the inverse of the "\n" unescaping done by LoadKeyPair.
func EscapePEM(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", `\n`)
}
