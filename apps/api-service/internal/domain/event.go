package domain

import (
	"time"
)

// AuthEventType represents the type of auth event
type AuthEventType string

const (
	AuthEventSignedIn          AuthEventType = "auth.signed_in"
	AuthEventTokenRefreshed    AuthEventType = "auth.token_refreshed"
	AuthEventSignedOut         AuthEventType = "auth.signed_out"
	AuthEventSessionTerminated AuthEventType = "auth.session_terminated"
)

// AuthEvent is published after a session state change
type AuthEvent struct {
	ID         string        `json:"id"`
	Type       AuthEventType `json:"type"`
	UserID     string        `json:"userId"`
	SessionID  string        `json:"sessionId,omitempty"`
	IP         string        `json:"ip,omitempty"`
	UserAgent  string        `json:"userAgent,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewAuthEvent creates an event stamped with the current time
func NewAuthEvent(id string, eventType AuthEventType, userID, sessionID string) *AuthEvent {
	return &AuthEvent{
		ID:         id,
		Type:       eventType,
		UserID:     userID,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	}
}

// Key partitions events by user
func (e *AuthEvent) Key() string {
	return e.UserID
}
