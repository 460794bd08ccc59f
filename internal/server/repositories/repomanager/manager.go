// Package repomanager decides which store resources a deployment needs and
// builds the repositories on top of them once they are connected.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/resources"
	"github.com/redis/go-redis/v9"
)

type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMemory   Backend = "memory"
)

// Resource names registered with the orchestrator.
const (
	PostgresResource = "postgres"
	RedisResource    = "redis"
	MemoryResource   = "memory"
)

// Store is the credential store handed to the services.
type Store struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository
}

type RepositoryManager interface {
	// Resources returns the resources to connect, one per backend in use.
	Resources() []resources.Resource
	// Open builds the Store from connected resources.
	Open(ctx context.Context, o *resources.Orchestrator) (*Store, error)
	RunMigrations(ctx context.Context, db *sql.DB) error
}

type Options struct {
	// Users is postgres or memory.
	Users Backend
	// RefreshTokens is postgres, redis or memory. Defaults to Users.
	RefreshTokens Backend

	PostgresDSN     string
	PostgresOptions resources.PostgresOptions
	Migrate         bool

	Redis       *redis.Options
	RedisPrefix string
}

func (o Options) Validate() error {
	switch o.Users {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unsupported users backend %q", o.Users)
	}
	switch o.RefreshTokens {
	case BackendPostgres, BackendMemory, "":
	case BackendRedis:
		if o.Redis == nil {
			return fmt.Errorf("redis backend requires redis options")
		}
	default:
		return fmt.Errorf("unsupported refresh token backend %q", o.RefreshTokens)
	}
	return nil
}
