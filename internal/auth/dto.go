package auth

import (
	"time"

	"github.com/frahmantamala/hse-inspection/internal/user"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	PIN string `json:"pin"`
}

// ClientMeta describes where a request came from, for rate limiting and logs.
type ClientMeta struct {
	IP        string
	UserAgent string
	Path      string
}

// LoginResult is the outcome of a successful login. Token goes into the cookie only.
type LoginResult struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
}

type LoginResponse struct {
	User      *user.User `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type MeResponse struct {
	User *user.User `json:"user"`
}
