package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// emailConstraint is the unique index on lower(email).
const emailConstraint = "users_email_lower_idx"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name, email, digest string) (models.InsertResult, error) {

	query :=
		`INSERT INTO users (name, email, password_digest)
         VALUES ($1, $2, $3)
		 `

	res, err := r.db.ExecContext(ctx, query, name, normalizeEmail(email), digest)
	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return models.InsertResult{}, common.ErrorAlreadyExists
		}
		return models.InsertResult{}, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("db error: %w", err)
	}

	return models.InsertResult{Acknowledged: true, InsertedCount: n}, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, name, email, password_digest, created_at FROM users
		 WHERE lower(email) = lower($1)
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, normalizeEmail(email)).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordDigest, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
