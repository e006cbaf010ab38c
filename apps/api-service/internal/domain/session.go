package domain

import (
	"time"
)

// Session is one login of a user. Its ID doubles as the jti of every token
// minted for that login.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Token        string    `json:"-"` // current refresh token
	UserAgent    *string   `json:"userAgent"`
	IP           *string   `json:"ip"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsActive reports whether the session has not expired or been terminated at now
func (s *Session) IsActive(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
