package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims carried by both token types.
// Subject is the user id and ID (jti) is the session id. Nonce keeps two
// tokens minted within the same second distinct.
type Claims struct {
	Type  TokenType `json:"typ"`
	Nonce string    `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// Remaining returns the lifetime left at now, never negative
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthContext is attached to a request that passed the auth gate
type AuthContext struct {
	UserID      string
	SessionID   string
	Claims      *Claims
	AccessToken string
	// Rotated is set when AccessToken was minted during authentication
	Rotated bool
}
