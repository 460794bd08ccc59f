// Package refreshtokens stores the records backing outstanding refresh
// tokens. A record is consumed by deleting it, so Delete must remove a given
// id at most once even under concurrent callers.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create stores t. A record with the same id already present is not
	// overwritten and yields InsertedCount 0.
	Create(ctx context.Context, t *models.RefreshToken) (models.InsertResult, error)

	// Find returns the record for id, or common.ErrorNotFound.
	Find(ctx context.Context, id string) (*models.RefreshToken, error)

	// Delete removes the record for id and returns it. A missing record is
	// not an error: the result is acknowledged with Deleted == nil.
	Delete(ctx context.Context, id string) (models.DeleteResult, error)
}
