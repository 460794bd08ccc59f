// Package models defines the records kept in the credential store.
package models

import "time"

type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	PasswordDigest string    `db:"password_digest" json:"password_digest"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
