package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a go-redis client checked with PING on connect.
type Redis struct {
	name   string
	opts   *redis.Options
	client *redis.Client
}

func NewRedis(name string, opts *redis.Options) *Redis {
	return &Redis{name: name, opts: opts}
}

func (r *Redis) Name() string { return r.name }

func (r *Redis) Connect(ctx context.Context) error {
	c := redis.NewClient(r.opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}
	r.client = c
	return nil
}

func (r *Redis) Close(context.Context) error {
	if r.client == nil {
		return errors.New("not connected")
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// Client returns the connected client, or nil.
func (r *Redis) Client() *redis.Client { return r.client }
