package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/patrickmn/go-cache"
)

const memoryKeyPrefix = "rt:"

// MemoryRepository keeps records in a go-cache with the token's expiry.
type MemoryRepository struct {
	mu  sync.Mutex
	c   *cache.Cache
	now func() time.Time
}

func NewMemoryRepository(c *cache.Cache) *MemoryRepository {
	return &MemoryRepository{c: c, now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, t *models.RefreshToken) (models.InsertResult, error) {
	ttl := cache.NoExpiration
	if !t.ExpiresAt.IsZero() {
		ttl = t.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return models.InsertResult{Acknowledged: true}, nil
		}
	}

	cp := *t
	if err := r.c.Add(memoryKeyPrefix+t.ID, &cp, ttl); err != nil {
		return models.InsertResult{Acknowledged: true}, nil
	}
	return models.InsertResult{Acknowledged: true, InsertedCount: 1}, nil
}

func (r *MemoryRepository) Find(_ context.Context, id string) (*models.RefreshToken, error) {
	v, ok := r.c.Get(memoryKeyPrefix + id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *v.(*models.RefreshToken)
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) (models.DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.c.Get(memoryKeyPrefix + id)
	if !ok {
		return models.DeleteResult{Acknowledged: true}, nil
	}
	r.c.Delete(memoryKeyPrefix + id)
	return models.DeleteResult{Acknowledged: true, Deleted: v.(*models.RefreshToken)}, nil
}
