package resources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// PostgresOptions tunes the database/sql pool.
type PostgresOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres is a database/sql pool on the pgx driver.
type Postgres struct {
	name string
	dsn  string
	opts PostgresOptions
	db   *sql.DB
}

func NewPostgres(name, dsn string, opts PostgresOptions) *Postgres {
	return &Postgres{name: name, dsn: dsn, opts: opts}
}

func (p *Postgres) Name() string { return p.name }

func (p *Postgres) Connect(ctx context.Context) error {
	db, err := sqlOpen("pgx", p.dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if p.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.opts.MaxOpenConns)
	}
	if p.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.opts.MaxIdleConns)
	}
	if p.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping: %w", err)
	}
	p.db = db
	return nil
}

func (p *Postgres) Close(context.Context) error {
	if p.db == nil {
		return errors.New("not connected")
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// DB returns the pool. It is nil until Connect succeeds.
func (p *Postgres) DB() *sql.DB { return p.db }
