// Package auth authenticates API callers with JWT bearer tokens. A
// static service token lets background workers call in without a user
// account.
package auth

import (
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrInvalidCredentials covers every login failure so responses never
// reveal which part was wrong.
var ErrInvalidCredentials = shared.Validation("auth: invalid credentials")

// ErrInvalidToken rejects missing, malformed, or expired bearer tokens.
var ErrInvalidToken = shared.Validation("auth: invalid token")
