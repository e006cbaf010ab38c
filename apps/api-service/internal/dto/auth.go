package dto

import (
	"regexp"
	"time"

	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates email format more strictly than the binding tag
func ValidateEmail(email string) (bool, string) {
	if !emailRegex.MatchString(email) {
		return false, "Invalid email format"
	}
	return true, ""
}

// SignInRequest represents sign-in request
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token for clients that cannot send cookies
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ClientMeta describes the client that opened a session
type ClientMeta struct {
	UserAgent string
	IP        string
}

// SessionResponse is a session as shown to its owner
type SessionResponse struct {
	ID           string    `json:"id"`
	UserAgent    *string   `json:"userAgent"`
	IP           *string   `json:"ip"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// NewSessionResponses flags the session the caller is using
func NewSessionResponses(sessions []*domain.Session, currentID string) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:           s.ID,
			UserAgent:    s.UserAgent,
			IP:           s.IP,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
			ExpiresAt:    s.ExpiresAt,
			Current:      s.ID == currentID,
		})
	}
	return out
}
