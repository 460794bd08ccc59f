// Package users stores user accounts. Emails are unique regardless of case.
package users

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// FindByEmail returns the account for email, compared case-insensitively
	// after trimming surrounding whitespace, or common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Create stores a new account. A taken email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, name, email, digest string) (models.InsertResult, error)
}

// normalizeEmail is applied by every backend before an email is stored or
// looked up. Case folding is left to the backend.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
