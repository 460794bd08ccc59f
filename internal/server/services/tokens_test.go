package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func issue(t *testing.T, f *fixture, subject string) (*TokenPair, *auth.Claims) {
	t.Helper()
	pair, err := f.authority.IssueTokenPair(context.Background(), subject)
	require.NoError(t, err)
	claims, err := f.authority.VerifyRefreshToken(context.Background(), pair.RefreshToken, "")
	require.NoError(t, err)
	return pair, claims
}

func TestAuthenticatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Register(ctx, "Alice", "alice@example.com", "Secret123!"))

	u, err := f.authority.AuthenticatePassword(ctx, "Alice@Example.com", "Secret123!")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice@example.com", u.Email)

	u, err = f.authority.AuthenticatePassword(ctx, "alice@example.com", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = f.authority.AuthenticatePassword(ctx, "ghost@example.com", "Secret123!")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestAuthenticatePassword_StoreError(t *testing.T) {
	a := NewTokenAuthority(&fakeUsers{findErr: errors.New("db down")}, &fakeTokens{}, nil, nil, auth.NewPasswords(bcrypt.MinCost), nil)
	_, err := a.AuthenticatePassword(context.Background(), "alice@example.com", "x")
	assert.ErrorContains(t, err, "db down")
}

func TestIssueTokenPair_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.authority.IssueTokenPair(ctx, "alice@example.com")
	require.NoError(t, err)

	access, err := f.authority.VerifyAccessToken(ctx, pair.AccessToken, common.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", access.Subject)
	assert.Empty(t, access.ID)

	refresh, err := f.authority.VerifyRefreshToken(ctx, pair.RefreshToken, "")
	require.NoError(t, err)
	require.NotEmpty(t, refresh.ID)

	rec, err := f.tokenRepo.Find(ctx, refresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rec.Subject)
	assert.Equal(t, common.ServiceName, rec.Issuer)
	assert.True(t, rec.ExpiresAt.Equal(refresh.ExpiresAt.Time))
}

func TestIssueTokenPair_InsertOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		res    models.InsertResult
		reason Reason
	}{
		{"not acknowledged", models.InsertResult{InsertedCount: 1}, ReasonInsertNotOK},
		{"nothing inserted", models.InsertResult{Acknowledged: true}, ReasonNotInserted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &fakeTokens{createRes: tt.res}
			f := newFixtureWith(t, tokens, nil)

			_, err := f.authority.IssueTokenPair(context.Background(), "alice@example.com")
			var fail *Failure
			require.ErrorAs(t, err, &fail)
			assert.Equal(t, tt.reason, fail.Reason)
			assert.NotEmpty(t, fail.JTI)
		})
	}
}

func TestIssueTokenPair_StoreError(t *testing.T) {
	tokens := &fakeTokens{createErr: errors.New("db down")}
	f := newFixtureWith(t, tokens, nil)

	_, err := f.authority.IssueTokenPair(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, Reason(""), ReasonOf(err))
}

func TestIssueTokenPair_SignFailureDropsStoredRecord(t *testing.T) {
	f := newFixture(t)
	c := &collect{}
	bus := events.NewBus()
	bus.Subscribe(c.add)

	a := NewTokenAuthority(f.userRepo, f.tokenRepo, failingSigner{}, f.refresh, auth.NewPasswords(bcrypt.MinCost), bus.Emitter("Auth Model", "tokens"))
	var jti string
	a.newID = func() string {
		jti = "fixed-jti"
		return jti
	}

	_, err := a.IssueTokenPair(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, errSign)

	_, err = f.tokenRepo.Find(context.Background(), jti)
	assert.ErrorIs(t, err, common.ErrorNotFound, "an unreturned pair leaves no record behind")
	assert.Empty(t, c.failures())
}

func TestVerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	f := newFixture(t)
	pair, _ := issue(t, f, "alice@example.com")

	_, err := f.authority.VerifyAccessToken(context.Background(), pair.RefreshToken, "")
	assert.Equal(t, ReasonNotAccessToken, ReasonOf(err))
}

func TestVerifyAccessToken_Invalid(t *testing.T) {
	f := newFixture(t)
	pair, _ := issue(t, f, "alice@example.com")

	_, err := f.authority.VerifyAccessToken(context.Background(), "garbage", "")
	assert.Equal(t, ReasonInvalidToken, ReasonOf(err))

	_, err = f.authority.VerifyAccessToken(context.Background(), pair.AccessToken, "billing")
	assert.Equal(t, ReasonInvalidToken, ReasonOf(err))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerifyRefreshToken_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	pair, _ := issue(t, f, "alice@example.com")

	_, err := f.authority.VerifyRefreshToken(context.Background(), pair.AccessToken, "")
	assert.Equal(t, ReasonNotRefreshToken, ReasonOf(err))
}

func TestVerifyRefreshToken_ForgedSignature(t *testing.T) {
	f := newFixture(t)
	_, claims := issue(t, f, "alice@example.com")

	// Same jti and type, signed with the access key instead of the refresh key.
	ak, _ := loadKeys(t)
	forger := auth.NewSigner(common.ServiceName, common.TokenTypeRefresh, ak, f.refresh.TTL())
	forged, _, err := forger.Sign("alice@example.com", claims.ID)
	require.NoError(t, err)

	_, err = f.authority.VerifyRefreshToken(context.Background(), forged, "")
	assert.Equal(t, ReasonInvalidToken, ReasonOf(err))
}

func TestVerifyRefreshToken_StoreError(t *testing.T) {
	tokens := &fakeTokens{
		createRes: models.InsertResult{Acknowledged: true, InsertedCount: 1},
		findErr:   errors.New("db down"),
	}
	f := newFixtureWith(t, tokens, nil)
	pair, err := f.authority.IssueTokenPair(context.Background(), "alice@example.com")
	require.NoError(t, err)

	_, err = f.authority.VerifyRefreshToken(context.Background(), pair.RefreshToken, "")
	require.Error(t, err)
	assert.Equal(t, Reason(""), ReasonOf(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestInvalidateRefreshToken_Outcomes(t *testing.T) {
	claims := &auth.Claims{}
	claims.ID = "jti-1"

	tests := []struct {
		name   string
		res    models.DeleteResult
		reason Reason
	}{
		{"not acknowledged", models.DeleteResult{Deleted: &models.RefreshToken{ID: "jti-1"}}, ReasonDeleteNotOK},
		{"nothing matched", models.DeleteResult{Acknowledged: true}, ReasonNotFound},
		{"other record", models.DeleteResult{Acknowledged: true, Deleted: &models.RefreshToken{ID: "jti-2"}}, ReasonNotDeleted},
		{"deleted", models.DeleteResult{Acknowledged: true, Deleted: &models.RefreshToken{ID: "jti-1"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, &fakeTokens{deleteRes: tt.res}, nil)
			err := f.authority.InvalidateRefreshToken(context.Background(), claims)
			assert.Equal(t, tt.reason, ReasonOf(err))
			if tt.reason == "" {
				assert.NoError(t, err)
			} else {
				var fail *Failure
				require.ErrorAs(t, err, &fail)
				assert.Equal(t, "jti-1", fail.JTI)
			}
		})
	}
}

func TestRotate_InvalidatesThenIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, claims := issue(t, f, "alice@example.com")

	pair, err := f.authority.Rotate(ctx, claims)
	require.NoError(t, err)
	assert.NotEqual(t, old.RefreshToken, pair.RefreshToken)

	_, err = f.authority.VerifyRefreshToken(ctx, old.RefreshToken, "")
	assert.Equal(t, ReasonInvalidToken, ReasonOf(err), "a rotated token cannot be used again")

	fresh, err := f.authority.VerifyRefreshToken(ctx, pair.RefreshToken, "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", fresh.Subject)
}

func TestRotate_FailedInvalidationIssuesNothing(t *testing.T) {
	tokens := &fakeTokens{deleteRes: models.DeleteResult{Acknowledged: true}}
	f := newFixtureWith(t, tokens, nil)
	claims := &auth.Claims{}
	claims.ID, claims.Subject = "jti-1", "alice@example.com"

	_, err := f.authority.Rotate(context.Background(), claims)
	assert.Equal(t, ReasonNotFound, ReasonOf(err))
	assert.EqualValues(t, 0, tokens.creates.Load())

	tokens.deleteRes, tokens.deleteErr = models.DeleteResult{}, errors.New("db down")
	_, err = f.authority.Rotate(context.Background(), claims)
	assert.ErrorContains(t, err, "db down")
	assert.EqualValues(t, 0, tokens.creates.Load())
}

func TestRotate_ConcurrentUseHasOneWinner(t *testing.T) {
	f := newFixture(t)
	_, claims := issue(t, f, "alice@example.com")

	const n = 12
	var wins, notFound atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.authority.Rotate(context.Background(), claims)
			switch {
			case err == nil:
				wins.Add(1)
			case ReasonOf(err) == ReasonNotFound:
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, notFound.Load())
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, claims := issue(t, f, "alice@example.com")

	require.NoError(t, f.authority.Revoke(ctx, claims))
	_, err := f.authority.VerifyRefreshToken(ctx, pair.RefreshToken, "")
	assert.Equal(t, ReasonInvalidToken, ReasonOf(err))

	assert.Equal(t, ReasonNotFound, ReasonOf(f.authority.Revoke(ctx, claims)))
}

func TestFailure_Error(t *testing.T) {
	assert.Equal(t, "not found (jti j1)", (&Failure{Reason: ReasonNotFound, JTI: "j1"}).Error())
	assert.Equal(t, "invalid token: token expired",
		(&Failure{Reason: ReasonInvalidToken, Err: common.ErrTokenExpired}).Error())
	assert.ErrorIs(t, &Failure{Reason: ReasonInvalidToken, Err: common.ErrTokenExpired}, common.ErrTokenExpired)
}

type collect struct {
	mu sync.Mutex
	ns []events.Notification
}

func (c *collect) add(n events.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ns = append(c.ns, n)
}

func (c *collect) failures() []events.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Notification
	for _, n := range c.ns {
		if n.Event == events.Failed {
			out = append(out, n)
		}
	}
	return out
}
