package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Passwords hashes and checks passwords with bcrypt at Cost.
type Passwords struct {
	Cost int
}

func NewPasswords(cost int) Passwords {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Passwords{Cost: cost}
}

func (p Passwords) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), p.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches digest. A malformed digest is an
// error; a plain mismatch is not.
func (p Passwords) Compare(digest, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
