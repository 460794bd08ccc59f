package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces refresh token keys.
const DefaultRedisPrefix = "gophauth:rt:"

// RedisRepository keeps one JSON value per record, expiring with the token.
type RedisRepository struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisRepository(rdb redis.Cmdable, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(id string) string { return r.prefix + id }

func (r *RedisRepository) Create(ctx context.Context, t *models.RefreshToken) (models.InsertResult, error) {
	var ttl time.Duration
	if !t.ExpiresAt.IsZero() {
		ttl = t.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			// nothing to keep
			return models.InsertResult{Acknowledged: true}, nil
		}
	}

	b, err := json.Marshal(t)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("encode refresh token: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, r.key(t.ID), b, ttl).Result()
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return models.InsertResult{Acknowledged: true}, nil
	}
	return models.InsertResult{Acknowledged: true, InsertedCount: 1}, nil
}

func (r *RedisRepository) Find(ctx context.Context, id string) (*models.RefreshToken, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decode(b)
}

// Delete uses GETDEL, which is atomic on the server.
func (r *RedisRepository) Delete(ctx context.Context, id string) (models.DeleteResult, error) {
	b, err := r.rdb.GetDel(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.DeleteResult{Acknowledged: true}, nil
		}
		return models.DeleteResult{}, fmt.Errorf("redis error: %w", err)
	}
	t, err := decode(b)
	if err != nil {
		return models.DeleteResult{}, err
	}
	return models.DeleteResult{Acknowledged: true, Deleted: t}, nil
}

func decode(b []byte) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	if err := json.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return t, nil
}
