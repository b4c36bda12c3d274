package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/solenne/boutique/internal/domain/auth"
)

// userIDKey is the context key for the authenticated user's ID.
type userIDKey struct{}

// UserIDFromContext returns the authenticated user ID set by the auth
// middleware, or an empty string.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SessionAuth authenticates requests via bearer session tokens. The token is
// HMAC-SHA256 hashed with the pepper, looked up in the session store, and the
// stored hash is compared in constant time. The resulting user identity is
// request-scoped: it travels in the context, never in package state.
type SessionAuth struct {
	sessions auth.Repository
	pepper   []byte
}

// NewSessionAuth creates a SessionAuth with the given session repository and
// HMAC pepper.
func NewSessionAuth(sessions auth.Repository, pepper []byte) *SessionAuth {
	return &SessionAuth{sessions: sessions, pepper: pepper}
}

// Middleware rejects requests without a valid session with 401 and otherwise
// stores the session's user ID in the request context.
func (s *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(token))
		hash := mac.Sum(nil)

		info, err := s.sessions.FindByTokenHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			writeInternalError(w, r, err)
			return
		}

		// The lookup already matched, but compare anyway in constant time in
		// case the repository returned a stale or wrong row.
		stored, err := hex.DecodeString(info.TokenHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, info.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
