// Package auth signs users in with their PIN, issues session tokens and guards
// protected operations.
package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/hse-inspection/internal/user"
)

// DefaultSessionTTL matches the cookie Max-Age of 7 days.
const DefaultSessionTTL = 7 * 24 * time.Hour

const issuer = "hse-inspection"

// TokenGenerator creates and validates session tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID string) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserStore is the slice of the user service auth depends on.
type UserStore interface {
	FindByPIN(ctx context.Context, pin string) (*user.User, error)
	Get(ctx context.Context, id string) (*user.User, error)
	RecordLogin(ctx context.Context, id string) (*user.User, error)
}

// Authenticator resolves a raw token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}
