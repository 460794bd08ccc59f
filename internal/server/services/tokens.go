package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenSigner signs and verifies one kind of token. *auth.Signer implements it.
type TokenSigner interface {
	Issuer() string
	Sign(subject, jti string) (string, *auth.Claims, error)
	Verify(token, audience string) (*auth.Claims, error)
}

// TokenAuthority authenticates users and issues, verifies, rotates and
// revokes token pairs. Refresh tokens are single use: each one is backed by a
// store record that is deleted when the token is consumed.
type TokenAuthority struct {
	users     users.Repository
	tokens    refreshtokens.Repository
	access    TokenSigner
	refresh   TokenSigner
	passwords auth.Passwords
	em        *events.Emitter
	newID     func() string
}

// NewTokenAuthority wires the authority. em may be nil.
func NewTokenAuthority(
	u users.Repository,
	t refreshtokens.Repository,
	access, refresh TokenSigner,
	passwords auth.Passwords,
	em *events.Emitter,
) *TokenAuthority {
	return &TokenAuthority{
		users:     u,
		tokens:    t,
		access:    access,
		refresh:   refresh,
		passwords: passwords,
		em:        em,
		newID:     uuid.NewString,
	}
}

// AuthenticatePassword returns the user for email if password matches, and
// (nil, nil) when the user is unknown or the password is wrong.
func (a *TokenAuthority) AuthenticatePassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := a.passwords.Compare(user.PasswordDigest, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return user, nil
}

// IssueTokenPair signs both tokens for subject and persists the refresh
// token record. It returns only after the record is stored.
func (a *TokenAuthority) IssueTokenPair(ctx context.Context, subject string) (*TokenPair, error) {
	jti := a.newID()

	var (
		pair     TokenPair
		inserted models.InsertResult
		stored   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tok, _, err := a.access.Sign(subject, "")
		if err != nil {
			return err
		}
		pair.AccessToken = tok
		return nil
	})
	g.Go(func() error {
		tok, claims, err := a.refresh.Sign(subject, jti)
		if err != nil {
			return err
		}
		pair.RefreshToken = tok

		rec := &models.RefreshToken{
			ID:        jti,
			Issuer:    a.refresh.Issuer(),
			Subject:   subject,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
		}
		res, err := a.tokens.Create(gctx, rec)
		if err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}

		inserted, stored = res, res.InsertedCount > 0
		return nil
	})

	if err := g.Wait(); err != nil {
		if stored {
			a.dropOrphan(ctx, jti)
		}
		return nil, err
	}

	if !inserted.Acknowledged {
		return nil, &Failure{Reason: ReasonInsertNotOK, JTI: jti}
	}
	if inserted.InsertedCount < 1 {
		return nil, &Failure{Reason: ReasonNotInserted, JTI: jti}
	}
	return &pair, nil
}

// dropOrphan removes a record whose token pair was never handed out.
func (a *TokenAuthority) dropOrphan(ctx context.Context, jti string) {
	if _, err := a.tokens.Delete(context.WithoutCancel(ctx), jti); err != nil && a.em != nil {
		a.em.Fail(err, map[string]string{"jti": jti})
	}
}

// VerifyAccessToken verifies an access token. A token of another type is
// rejected before any signature check.
func (a *TokenAuthority) VerifyAccessToken(_ context.Context, token, audience string) (*auth.Claims, error) {
	typ, err := auth.PeekType(token)
	if err != nil {
		return nil, &Failure{Reason: ReasonInvalidToken, Err: err}
	}
	if typ != common.TokenTypeAccess {
		return nil, &Failure{Reason: ReasonNotAccessToken}
	}

	claims, err := a.access.Verify(token, audience)
	if err != nil {
		return nil, &Failure{Reason: ReasonInvalidToken, Err: err}
	}
	return claims, nil
}

// VerifyRefreshToken verifies a refresh token's signature and checks that its
// record still exists. Both checks run concurrently. A bad signature and a
// consumed record fail the same way; store errors are returned as is.
func (a *TokenAuthority) VerifyRefreshToken(ctx context.Context, token, audience string) (*auth.Claims, error) {
	// The jti is needed for the lookup before the signature is known good.
	unverified, err := auth.Peek(token)
	if err != nil {
		return nil, &Failure{Reason: ReasonInvalidToken, Err: err}
	}
	if unverified.Type != common.TokenTypeRefresh {
		return nil, &Failure{Reason: ReasonNotRefreshToken}
	}

	var (
		claims    *auth.Claims
		verifyErr error
		record    *models.RefreshToken
		findErr   error
	)

	var g errgroup.Group
	g.Go(func() error {
		claims, verifyErr = a.refresh.Verify(token, audience)
		return nil
	})
	g.Go(func() error {
		record, findErr = a.tokens.Find(ctx, unverified.ID)
		return nil
	})
	_ = g.Wait()

	if verifyErr != nil {
		return nil, &Failure{Reason: ReasonInvalidToken, JTI: unverified.ID, Err: verifyErr}
	}
	if findErr != nil {
		if errors.Is(findErr, common.ErrorNotFound) {
			return nil, &Failure{Reason: ReasonInvalidToken, JTI: claims.ID}
		}
		return nil, fmt.Errorf("find refresh token: %w", findErr)
	}
	if record.Subject != claims.Subject {
		return nil, &Failure{Reason: ReasonInvalidToken, JTI: claims.ID}
	}
	return claims, nil
}

// InvalidateRefreshToken consumes the record behind claims. It succeeds only
// if this call deleted the record.
func (a *TokenAuthority) InvalidateRefreshToken(ctx context.Context, claims *auth.Claims) error {
	jti := claims.ID
	res, err := a.tokens.Delete(ctx, jti)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if !res.Acknowledged {
		return &Failure{Reason: ReasonDeleteNotOK, JTI: jti}
	}
	if res.Deleted == nil {
		return &Failure{Reason: ReasonNotFound, JTI: jti}
	}
	if res.Deleted.ID != jti {
		return &Failure{Reason: ReasonNotDeleted, JTI: jti}
	}
	return nil
}

// Rotate consumes a verified refresh token and, only once that succeeded,
// issues a new pair for the same subject.
func (a *TokenAuthority) Rotate(ctx context.Context, claims *auth.Claims) (*TokenPair, error) {
	if err := a.InvalidateRefreshToken(ctx, claims); err != nil {
		return nil, err
	}
	return a.IssueTokenPair(ctx, claims.Subject)
}

// Revoke consumes a verified refresh token without issuing a new one.
func (a *TokenAuthority) Revoke(ctx context.Context, claims *auth.Claims) error {
	return a.InvalidateRefreshToken(ctx, claims)
}
