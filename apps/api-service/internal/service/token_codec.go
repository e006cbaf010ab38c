package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrTokenMalformed        = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrInvalidToken)
)

// TokenCodec signs and verifies the bearer tokens of a session
type TokenCodec interface {
	// Sign mints a token of tokenType for subject whose jti is sessionID
	Sign(tokenType domain.TokenType, subject, sessionID string, ttl time.Duration) (string, *domain.Claims, error)
	// Verify checks signature and expiry. It never panics; every failure
	// wraps ErrInvalidToken or is ErrTokenExpired.
	Verify(token string) (*domain.Claims, error)
}

// CodecOption configures a TokenCodec
type CodecOption func(*jwtCodec)

// WithClock replaces time.Now
func WithClock(now func() time.Time) CodecOption {
	return func(c *jwtCodec) {
		c.now = now
	}
}

type jwtCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec creates an HS256 TokenCodec
func NewTokenCodec(secret string, opts ...CodecOption) TokenCodec {
	c := &jwtCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
		jwt.WithExpirationRequired(),
	)
	return c
}

func (c *jwtCodec) Sign(tokenType domain.TokenType, subject, sessionID string, ttl time.Duration) (string, *domain.Claims, error) {
	if subject == "" || sessionID == "" {
		return "", nil, errors.New("token subject and session id are required")
	}
	if ttl <= 0 {
		return "", nil, errors.New("token ttl must be positive")
	}

	now := c.now()
	claims := &domain.Claims{
		Type:  tokenType,
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, claims, nil
}

func (c *jwtCodec) Verify(token string) (*domain.Claims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}

	claims := &domain.Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}
	return claims, nil
}
