package users

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const memoryKeyPrefix = "user:"

// MemoryRepository keeps accounts in a go-cache, keyed by lower-cased email.
type MemoryRepository struct {
	c   *cache.Cache
	now func() time.Time
}

func NewMemoryRepository(c *cache.Cache) *MemoryRepository {
	return &MemoryRepository{c: c, now: time.Now}
}

func memoryKey(email string) string {
	return memoryKeyPrefix + strings.ToLower(normalizeEmail(email))
}

func (r *MemoryRepository) Create(_ context.Context, name, email, digest string) (models.InsertResult, error) {
	u := &models.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          normalizeEmail(email),
		PasswordDigest: digest,
		CreatedAt:      r.now().UTC(),
	}
	if err := r.c.Add(memoryKey(email), u, cache.NoExpiration); err != nil {
		return models.InsertResult{}, common.ErrorAlreadyExists
	}
	return models.InsertResult{Acknowledged: true, InsertedCount: 1}, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	v, ok := r.c.Get(memoryKey(email))
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *v.(*models.User)
	return &u, nil
}
