package resources

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is an in-process store backed by go-cache. It exists so the
// service can run, and be tested, without any external store.
type Memory struct {
	name            string
	cleanupInterval time.Duration
	cache           *cache.Cache
}

func NewMemory(name string, cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Memory{name: name, cleanupInterval: cleanupInterval}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Connect(context.Context) error {
	m.cache = cache.New(cache.NoExpiration, m.cleanupInterval)
	return nil
}

func (m *Memory) Close(context.Context) error {
	if m.cache != nil {
		m.cache.Flush()
	}
	m.cache = nil
	return nil
}

func (m *Memory) Cache() *cache.Cache { return m.cache }
