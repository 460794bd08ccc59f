package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	keysOnce    sync.Once
	accessKeys  auth.KeyPair
	refreshKeys auth.KeyPair
	keysErr     error
)

func loadKeys(t *testing.T) (auth.KeyPair, auth.KeyPair) {
	t.Helper()
	keysOnce.Do(func() {
		gen := func() (auth.KeyPair, error) {
			priv, pub, err := auth.GenerateKeyPair(auth.DefaultKeyBits)
			if err != nil {
				return auth.KeyPair{}, err
			}
			return auth.LoadKeyPair(priv, pub)
		}
		if accessKeys, keysErr = gen(); keysErr != nil {
			return
		}
		refreshKeys, keysErr = gen()
	})
	require.NoError(t, keysErr)
	return accessKeys, refreshKeys
}

type fixture struct {
	authority *TokenAuthority
	users     *UserService
	userRepo  users.Repository
	tokenRepo refreshtokens.Repository
	access    *auth.Signer
	refresh   *auth.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith builds a fixture over in-memory repositories. tokenRepo and
// access replace the defaults when non-nil.
func newFixtureWith(t *testing.T, tokenRepo refreshtokens.Repository, access TokenSigner) *fixture {
	t.Helper()
	ak, rk := loadKeys(t)
	c := cache.New(cache.NoExpiration, 0)

	f := &fixture{
		userRepo:  users.NewMemoryRepository(c),
		tokenRepo: refreshtokens.NewMemoryRepository(c),
		access:    auth.NewSigner(common.ServiceName, common.TokenTypeAccess, ak, 15*time.Minute),
		refresh:   auth.NewSigner(common.ServiceName, common.TokenTypeRefresh, rk, 24*time.Hour),
	}
	if tokenRepo != nil {
		f.tokenRepo = tokenRepo
	}
	var accessSigner TokenSigner = f.access
	if access != nil {
		accessSigner = access
	}

	pw := auth.NewPasswords(bcrypt.MinCost)
	f.authority = NewTokenAuthority(f.userRepo, f.tokenRepo, accessSigner, f.refresh, pw, nil)
	f.users = NewUserService(f.userRepo, pw)
	return f
}

// fakeTokens is a scripted refreshtokens.Repository that counts calls.
type fakeTokens struct {
	createRes models.InsertResult
	createErr error
	findRes   *models.RefreshToken
	findErr   error
	deleteRes models.DeleteResult
	deleteErr error

	creates atomic.Int32
	deletes atomic.Int32
}

func (f *fakeTokens) Create(context.Context, *models.RefreshToken) (models.InsertResult, error) {
	f.creates.Add(1)
	return f.createRes, f.createErr
}

func (f *fakeTokens) Find(context.Context, string) (*models.RefreshToken, error) {
	return f.findRes, f.findErr
}

func (f *fakeTokens) Delete(context.Context, string) (models.DeleteResult, error) {
	f.deletes.Add(1)
	return f.deleteRes, f.deleteErr
}

// failingSigner signs nothing.
type failingSigner struct{ TokenSigner }

var errSign = errors.New("hsm unavailable")

func (failingSigner) Sign(string, string) (string, *auth.Claims, error) {
	return "", nil, errSign
}

// fakeUsers is a scripted users.Repository.
type fakeUsers struct {
	findRes   *models.User
	findErr   error
	createRes models.InsertResult
	createErr error
}

func (f *fakeUsers) FindByEmail(context.Context, string) (*models.User, error) {
	return f.findRes, f.findErr
}

func (f *fakeUsers) Create(context.Context, string, string, string) (models.InsertResult, error) {
	return f.createRes, f.createErr
}
