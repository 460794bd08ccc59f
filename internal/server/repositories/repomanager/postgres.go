package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/resources"
	"github.com/pressly/goose/v3"
)

// Manager is the RepositoryManager for every supported backend combination.
type Manager struct {
	opts Options
}

// NewManager validates opts and fills in the refresh token backend default.
func NewManager(opts Options) (*Manager, error) {
	if opts.RefreshTokens == "" {
		opts.RefreshTokens = opts.Users
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Manager{opts: opts}, nil
}

func (m *Manager) uses(b Backend) bool {
	return m.opts.Users == b || m.opts.RefreshTokens == b
}

func (m *Manager) Resources() []resources.Resource {
	var rs []resources.Resource
	if m.uses(BackendPostgres) {
		rs = append(rs, resources.NewPostgres(PostgresResource, m.opts.PostgresDSN, m.opts.PostgresOptions))
	}
	if m.uses(BackendRedis) {
		rs = append(rs, resources.NewRedis(RedisResource, m.opts.Redis))
	}
	if m.uses(BackendMemory) {
		rs = append(rs, resources.NewMemory(MemoryResource, 0))
	}
	return rs
}

func (m *Manager) Open(ctx context.Context, o *resources.Orchestrator) (*Store, error) {
	var db *sql.DB
	if m.uses(BackendPostgres) {
		pg, err := lookup[*resources.Postgres](o, PostgresResource)
		if err != nil {
			return nil, err
		}
		db = pg.DB()
		if m.opts.Migrate {
			if err := m.RunMigrations(ctx, db); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
	}

	var mem *resources.Memory
	if m.uses(BackendMemory) {
		var err error
		if mem, err = lookup[*resources.Memory](o, MemoryResource); err != nil {
			return nil, err
		}
	}

	s := &Store{}
	switch m.opts.Users {
	case BackendPostgres:
		s.Users = users.NewPostgresRepository(db)
	case BackendMemory:
		s.Users = users.NewMemoryRepository(mem.Cache())
	}

	switch m.opts.RefreshTokens {
	case BackendPostgres:
		s.RefreshTokens = refreshtokens.NewPostgresRepository(db)
	case BackendRedis:
		rd, err := lookup[*resources.Redis](o, RedisResource)
		if err != nil {
			return nil, err
		}
		s.RefreshTokens = refreshtokens.NewRedisRepository(rd.Client(), m.opts.RedisPrefix)
	case BackendMemory:
		s.RefreshTokens = refreshtokens.NewMemoryRepository(mem.Cache())
	}
	return s, nil
}

func lookup[T resources.Resource](o *resources.Orchestrator, name string) (T, error) {
	var zero T
	r, ok := o.Resource(name)
	if !ok {
		return zero, fmt.Errorf("resource %q is not connected", name)
	}
	t, ok := r.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q has unexpected type %T", name, r)
	}
	return t, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *Manager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
