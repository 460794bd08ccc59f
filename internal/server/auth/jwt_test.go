package auth

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keysOnce sync.Once
	keysA    KeyPair
	keysB    KeyPair
	keysErr  error
)

func testKeys(t *testing.T) (KeyPair, KeyPair) {
	t.Helper()
	keysOnce.Do(func() {
		load := func() (KeyPair, error) {
			priv, pub, err := GenerateKeyPair(DefaultKeyBits)
			if err != nil {
				return KeyPair{}, err
			}
			return LoadKeyPair(priv, pub)
		}
		if keysA, keysErr = load(); keysErr != nil {
			return
		}
		keysB, keysErr = load()
	})
	require.NoError(t, keysErr)
	return keysA, keysB
}

func TestSignAndVerify_Success(t *testing.T) {
	keys, _ := testKeys(t)
	s := NewSigner(common.ServiceName, common.TokenTypeRefresh, keys, time.Hour)

	tok, claims, err := s.Sign("alice@example.com", "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "jti-1", claims.ID)
	assert.Equal(t, jwt.ClaimStrings{common.ServiceName}, claims.Audience)

	got, err := s.Verify(tok, "")
	require.NoError(t, err)
	assert.Equal(t, common.TokenTypeRefresh, got.Type)
	assert.Equal(t, "alice@example.com", got.Subject)
	assert.Equal(t, "jti-1", got.ID)
	assert.Equal(t, common.ServiceName, got.Issuer)

	_, err = s.Verify(tok, common.ServiceName)
	assert.NoError(t, err, "audience defaults to the issuer")
}

func TestSignAndVerify_SubjectRoundTrip(t *testing.T) {
	keys, _ := testKeys(t)
	s := NewSigner(common.ServiceName, common.TokenTypeAccess, keys, time.Hour)

	tests := []struct {
		name    string
		subject string
	}{
		{"email", "tester@example.com"},
		{"mixed case", "Tester@Example.COM"},
		{"unicode", "ユーザー@例え.jp"},
		{"umlauts", "Jürgen Größe"},
		{"emoji", "🔑@example.com"},
		{"single char", "a"},
		{"blank", " "},
		{"empty", ""},
		{"quotes and slashes", `"a\b"/c`},
		{"long", strings.Repeat("x", 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, claims, err := s.Sign(tt.subject, "jti")
			require.NoError(t, err)
			assert.Equal(t, tt.subject, claims.Subject)

			got, err := s.Verify(tok, "")
			require.NoError(t, err)
			assert.Equal(t, tt.subject, got.Subject)
		})
	}
}

func TestVerify_WrongAudience(t *testing.T) {
	keys, _ := testKeys(t)
	s := NewSigner("Auth", common.TokenTypeAccess, keys, time.Hour)
	tok, _, err := s.Sign("alice@example.com", "")
	require.NoError(t, err)

	_, err = s.Verify(tok, "billing")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	keys, _ := testKeys(t)
	s := NewSigner("Auth", common.TokenTypeAccess, keys, time.Minute)
	start := time.Now()
	s.now = func() time.Time { return start }

	tok, _, err := s.Sign("alice@example.com", "")
	require.NoError(t, err)

	s.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = s.Verify(tok, "")
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_MaxAge(t *testing.T) {
	keys, _ := testKeys(t)
	long := NewSigner("Auth", common.TokenTypeAccess, keys, 24*time.Hour)
	start := time.Now()
	long.now = func() time.Time { return start }
	tok, _, err := long.Sign("alice@example.com", "")
	require.NoError(t, err)

	// Same keys, shorter policy: exp is still in the future but the token is
	// older than the verifier accepts.
	short := NewSigner("Auth", common.TokenTypeAccess, keys, time.Minute)
	short.now = func() time.Time { return start.Add(time.Hour) }
	_, err = short.Verify(tok, "")
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_WrongKey(t *testing.T) {
	a, b := testKeys(t)
	tok, _, err := NewSigner("Auth", common.TokenTypeAccess, a, time.Hour).Sign("alice@example.com", "")
	require.NoError(t, err)

	_, err = NewSigner("Auth", common.TokenTypeAccess, b, time.Hour).Verify(tok, "")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	keys, _ := testKeys(t)
	tok, _, err := NewSigner("Other", common.TokenTypeAccess, keys, time.Hour).Sign("alice@example.com", "")
	require.NoError(t, err)

	_, err = NewSigner("Auth", common.TokenTypeAccess, keys, time.Hour).Verify(tok, "")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	keys, _ := testKeys(t)
	claims := &Claims{
		Type: common.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Auth",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewSigner("Auth", common.TokenTypeAccess, keys, time.Hour).Verify(tok, "")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	keys, _ := testKeys(t)
	_, err := NewSigner("Auth", common.TokenTypeAccess, keys, time.Hour).Verify("not-a-token", "")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestPeekType(t *testing.T) {
	keys, other := testKeys(t)
	tok, _, err := NewSigner("Auth", common.TokenTypeAccess, keys, time.Hour).Sign("a@b.c", "")
	require.NoError(t, err)

	typ, err := PeekType(tok)
	require.NoError(t, err)
	assert.Equal(t, common.TokenTypeAccess, typ)

	forged, _, err := NewSigner("Auth", common.TokenTypeRefresh, other, time.Hour).Sign("a@b.c", "x")
	require.NoError(t, err)
	typ, err = PeekType(forged)
	require.NoError(t, err)
	assert.Equal(t, common.TokenTypeRefresh, typ, "peek does not check signatures")

	_, err = PeekType("a.b")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = PeekType(strings.Repeat("x", 10))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
