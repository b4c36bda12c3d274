// Package auth holds the session identity types shared by the HTTP security
// layer and its storage backend. Session issuance happens elsewhere; this
// package only models lookup of already-issued tokens.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active session matches a token hash.
var ErrNotFound = errors.New("session not found")

// SessionInfo identifies the user behind a validated session token.
type SessionInfo struct {
	ID        string
	TokenHash string
	UserID    string
}

// Repository provides lookup of active sessions by their HMAC-SHA256 token hash.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*SessionInfo, error)
}
