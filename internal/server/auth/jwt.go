// Package auth signs and verifies the service's RS256 bearer tokens and
// hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const algorithm = "RS256"

// Claims are the token claims. Type is either common.TokenTypeAccess or
// common.TokenTypeRefresh.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Signer issues and verifies one kind of token with one key pair. The
// token's audience is the issuer itself.
type Signer struct {
	issuer string
	typ    string
	keys   KeyPair
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(issuer, typ string, keys KeyPair, ttl time.Duration) *Signer {
	return &Signer{issuer: issuer, typ: typ, keys: keys, ttl: ttl, now: time.Now}
}

func (s *Signer) Issuer() string { return s.issuer }

func (s *Signer) TTL() time.Duration { return s.ttl }

func (s *Signer) Type() string { return s.typ }

// Sign returns a signed token for subject. jti is optional.
func (s *Signer) Sign(subject, jti string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Type: s.typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        jti,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keys.Private)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", s.typ, err)
	}
	return tokenString, claims, nil
}

// Verify checks the signature, algorithm, issuer, expiry and age of
// tokenString. A non-empty audience must also match.
func (s *Signer) Verify(tokenString, audience string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{algorithm}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.keys.Public, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", common.ErrInvalidToken)
	}
	if s.ttl > 0 && s.now().Sub(claims.IssuedAt.Time) > s.ttl {
		return nil, common.ErrTokenExpired
	}

	return claims, nil
}

// Peek decodes the claims without verifying anything.
func Peek(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return claims, nil
}

// PeekType reads the type claim without verifying anything.
func PeekType(tokenString string) (string, error) {
	claims, err := Peek(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Type, nil
}
