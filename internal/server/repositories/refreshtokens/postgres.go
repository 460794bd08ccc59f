package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) (models.InsertResult, error) {
	query := `
		INSERT INTO refresh_tokens (id, issuer, subject, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, t.ID, t.Issuer, t.Subject, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("error performing sql request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.InsertResult{}, fmt.Errorf("error performing sql request: %w", err)
	}
	return models.InsertResult{Acknowledged: true, InsertedCount: n}, nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `
		SELECT id, issuer, subject, issued_at, expires_at
		FROM refresh_tokens
		WHERE id = $1
	`
	t := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Issuer, &t.Subject, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Delete relies on DELETE ... RETURNING, so of two concurrent deletes of the
// same id only one gets the row back.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (models.DeleteResult, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE id = $1
		RETURNING id, issuer, subject, issued_at, expires_at
	`
	t := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Issuer, &t.Subject, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeleteResult{Acknowledged: true}, nil
		}
		return models.DeleteResult{}, fmt.Errorf("db error: %w", err)
	}
	return models.DeleteResult{Acknowledged: true, Deleted: t}, nil
}
