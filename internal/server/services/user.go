// Package services contains the server-side business logic: account
// registration and the token authority.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// UserService registers accounts.
type UserService struct {
	users     users.Repository
	passwords auth.Passwords
}

func NewUserService(u users.Repository, passwords auth.Passwords) *UserService {
	return &UserService{users: u, passwords: passwords}
}

// EmailTaken reports whether an account already uses email, ignoring case.
func (s *UserService) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find user: %w", err)
	}
}

// Register hashes password and stores the account. It returns
// common.ErrorAlreadyExists if the email is taken and common.ErrorNotCreated
// if the store acknowledged the write without inserting anything.
func (s *UserService) Register(ctx context.Context, name, email, password string) error {
	digest, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res, err := s.users.Create(ctx, name, email, digest)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	if !res.Acknowledged || res.InsertedCount < 1 {
		return common.ErrorNotCreated
	}
	return nil
}
