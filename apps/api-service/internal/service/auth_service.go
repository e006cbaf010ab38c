package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/dto"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"github.com/yehezkieldio/virtualqueue/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrMissingToken        = errors.New("missing token")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionTerminated   = errors.New("session has been terminated")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionForbidden    = errors.New("session belongs to another user")
	ErrSignOutFailed       = errors.New("failed to sign out")
)

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// RotationThreshold is the fraction of AccessTokenTTL below which the
	// auth gate mints a replacement access token
	RotationThreshold float64
	TouchTimeout      time.Duration
	// MaxPendingTouches bounds in-flight background session touches
	MaxPendingTouches int
	// Now defaults to time.Now
	Now func() time.Time
}

// AuthService defines the interface for authentication and session operations
type AuthService interface {
	SignIn(ctx context.Context, req *dto.SignInRequest, meta dto.ClientMeta) (*domain.TokenPair, error)
	// Authenticate validates an access token for one request and may rotate it
	Authenticate(ctx context.Context, accessToken string) (*domain.AuthContext, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	// SignOut revokes whichever tokens are present and terminates their session
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	TerminateSession(ctx context.Context, userID, sessionID string) error
	TerminateAllSessions(ctx context.Context, userID, exceptSessionID string) (int64, error)
	// Shutdown waits for background session touches
	Shutdown(ctx context.Context) error
}

// authService implements AuthService
type authService struct {
	users       repository.UserRepository
	sessions    repository.SessionRepository
	revocations repository.RevocationStore
	codec       TokenCodec
	events      AuthEventPublisher
	log         *logger.Logger
	config      AuthServiceConfig

	touchSlots chan struct{}
	touchWG    sync.WaitGroup
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	revocations repository.RevocationStore,
	codec TokenCodec,
	events AuthEventPublisher,
	config AuthServiceConfig,
	log *logger.Logger,
) AuthService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 15 * time.Minute
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if config.RotationThreshold <= 0 || config.RotationThreshold >= 1 {
		config.RotationThreshold = 0.3
	}
	if config.TouchTimeout == 0 {
		config.TouchTimeout = 5 * time.Second
	}
	if config.MaxPendingTouches <= 0 {
		config.MaxPendingTouches = 256
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if events == nil {
		events = NewNoOpAuthEventPublisher()
	}
	if log == nil {
		log = logger.Get()
	}

	return &authService{
		users:       users,
		sessions:    sessions,
		revocations: revocations,
		codec:       codec,
		events:      events,
		log:         log,
		config:      config,
		touchSlots:  make(chan struct{}, config.MaxPendingTouches),
	}
}

// SignIn verifies credentials and opens a new session
func (s *authService) SignIn(ctx context.Context, req *dto.SignInRequest, meta dto.ClientMeta) (pair *domain.TokenPair, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.signin")
	defer func() { finishSpan(span, err) }()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}

	sessionID := uuid.NewString()
	pair, refreshClaims, err := s.issuePair(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.config.Now().UTC()
	session := &domain.Session{
		ID:           sessionID,
		UserID:       user.ID,
		Token:        pair.RefreshToken,
		UserAgent:    optional(meta.UserAgent),
		IP:           optional(meta.IP),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    refreshClaims.ExpiresAt.Time,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("session.id", sessionID),
	)
	s.publish(ctx, domain.AuthEventSignedIn, user.ID, sessionID, map[string]string{
		"ip":         meta.IP,
		"user_agent": meta.UserAgent,
	})

	return pair, nil
}

// Authenticate runs the per-request gate: denylist, signature and expiry,
// token type, then session state. Near expiry the access token is rotated
// and the session touched in the background.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (authCtx *domain.AuthContext, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.authenticate")
	defer func() { finishSpan(span, err) }()

	if accessToken == "" {
		return nil, ErrMissingToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, domain.TokenTypeAccess, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != domain.TokenTypeAccess || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	now := s.config.Now()
	session, err := s.sessions.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || !session.IsActive(now) || session.UserID != claims.Subject {
		return nil, ErrSessionTerminated
	}

	authCtx = &domain.AuthContext{
		UserID:      claims.Subject,
		SessionID:   claims.ID,
		Claims:      claims,
		AccessToken: accessToken,
	}

	threshold := time.Duration(float64(s.config.AccessTokenTTL) * s.config.RotationThreshold)
	if claims.Remaining(now) < threshold {
		rotated, rotatedClaims, err := s.codec.Sign(domain.TokenTypeAccess, claims.Subject, claims.ID, s.config.AccessTokenTTL)
		if err != nil {
			// the presented token is still valid
			s.log.Warn("failed to rotate access token", zap.String("session_id", claims.ID), zap.Error(err))
		} else {
			authCtx.AccessToken = rotated
			authCtx.Claims = rotatedClaims
			authCtx.Rotated = true
		}
		s.touchAsync(claims.ID)
	}

	span.SetAttributes(
		attribute.String("user.id", authCtx.UserID),
		attribute.Bool("auth.rotated", authCtx.Rotated),
	)
	return authCtx, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same session
func (s *authService) Refresh(ctx context.Context, refreshToken string) (pair *domain.TokenPair, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.refresh")
	defer func() { finishSpan(span, err) }()

	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	if claims.Type != domain.TokenTypeRefresh || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, domain.TokenTypeRefresh, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, claims.Subject, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	now := s.config.Now()
	session, err := s.sessions.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || !session.IsActive(now) {
		return nil, ErrSessionTerminated
	}
	if session.UserID != claims.Subject || session.Token != refreshToken {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.revocations.Revoke(ctx, domain.TokenTypeRefresh, refreshToken, claims.Remaining(now)); err != nil {
		return nil, err
	}

	pair, refreshClaims, err := s.issuePair(claims.Subject, claims.ID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateToken(ctx, claims.ID, refreshToken, pair.RefreshToken, refreshClaims.ExpiresAt.Time); err != nil {
		if errors.Is(err, repository.ErrSessionInactive) {
			return nil, ErrSessionTerminated
		}
		if errors.Is(err, repository.ErrTokenMismatch) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	span.SetAttributes(attribute.String("session.id", claims.ID))
	s.publish(ctx, domain.AuthEventTokenRefreshed, claims.Subject, claims.ID, nil)

	return pair, nil
}

type signOutTarget struct {
	tokenType domain.TokenType
	token     string
}

// SignOut handles both tokens concurrently. A token that fails to verify
// needs no revocation. The call fails only when every attempted token failed.
func (s *authService) SignOut(ctx context.Context, accessToken, refreshToken string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.signout")
	defer func() { finishSpan(span, err) }()

	var targets []signOutTarget
	if accessToken != "" {
		targets = append(targets, signOutTarget{domain.TokenTypeAccess, accessToken})
	}
	if refreshToken != "" {
		targets = append(targets, signOutTarget{domain.TokenTypeRefresh, refreshToken})
	}
	if len(targets) == 0 {
		return nil
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []error
		resolved *domain.Claims
	)
	for _, target := range targets {
		g.Go(func() error {
			claims, err := s.signOutToken(ctx, target.tokenType, target.token)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("sign-out step failed", zap.String("token_type", string(target.tokenType)), zap.Error(err))
				failures = append(failures, err)
			} else if claims != nil && resolved == nil {
				resolved = claims
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == len(targets) {
		return fmt.Errorf("%w: %w", ErrSignOutFailed, errors.Join(failures...))
	}

	if resolved != nil {
		s.publish(ctx, domain.AuthEventSignedOut, resolved.Subject, resolved.ID, nil)
	}
	return nil
}

func (s *authService) signOutToken(ctx context.Context, tokenType domain.TokenType, token string) (*domain.Claims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, nil
	}

	if ttl := claims.Remaining(s.config.Now()); ttl > 0 {
		if err := s.revocations.Revoke(ctx, tokenType, token, ttl); err != nil {
			return nil, err
		}
	}

	if claims.ID != "" {
		if err := s.sessions.Terminate(ctx, claims.ID); err != nil {
			return nil, fmt.Errorf("failed to terminate session: %w", err)
		}
	}
	return claims, nil
}

// ListSessions returns the active sessions of userID
func (s *authService) ListSessions(ctx context.Context, userID string) (sessions []*domain.Session, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.list_sessions")
	defer func() { finishSpan(span, err) }()

	return s.sessions.ListActive(ctx, userID)
}

// TerminateSession ends one session owned by userID
func (s *authService) TerminateSession(ctx context.Context, userID, sessionID string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.terminate_session")
	defer func() { finishSpan(span, err) }()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.UserID != userID {
		return ErrSessionForbidden
	}

	if err := s.sessions.Terminate(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}

	s.publish(ctx, domain.AuthEventSessionTerminated, userID, sessionID, nil)
	return nil
}

// TerminateAllSessions ends every active session of userID except exceptSessionID
func (s *authService) TerminateAllSessions(ctx context.Context, userID, exceptSessionID string) (n int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.terminate_all_sessions")
	defer func() { finishSpan(span, err) }()

	n, err = s.sessions.TerminateAll(ctx, userID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to terminate sessions: %w", err)
	}

	span.SetAttributes(attribute.Int64("sessions.terminated", n))
	if n > 0 {
		s.publish(ctx, domain.AuthEventSessionTerminated, userID, "", nil)
	}
	return n, nil
}

// Shutdown waits for in-flight session touches or ctx, whichever ends first
func (s *authService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.touchWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// touchAsync records session activity without holding up the request.
// When all slots are busy the touch is dropped.
func (s *authService) touchAsync(sessionID string) {
	select {
	case s.touchSlots <- struct{}{}:
	default:
		s.log.Warn("session touch dropped", zap.String("session_id", sessionID))
		return
	}

	s.touchWG.Add(1)
	go func() {
		defer s.touchWG.Done()
		defer func() { <-s.touchSlots }()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.TouchTimeout)
		defer cancel()

		if err := s.sessions.Touch(ctx, sessionID); err != nil {
			s.log.Warn("failed to touch session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

func (s *authService) issuePair(userID, sessionID string) (*domain.TokenPair, *domain.Claims, error) {
	access, _, err := s.codec.Sign(domain.TokenTypeAccess, userID, sessionID, s.config.AccessTokenTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshClaims, err := s.codec.Sign(domain.TokenTypeRefresh, userID, sessionID, s.config.RefreshTokenTTL)
	if err != nil {
		return nil, nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, refreshClaims, nil
}

// publish never fails the caller
func (s *authService) publish(ctx context.Context, eventType domain.AuthEventType, userID, sessionID string, meta map[string]string) {
	if err := s.events.Publish(ctx, eventType, userID, sessionID, meta); err != nil {
		s.log.Warn("failed to publish auth event",
			zap.String("event_type", string(eventType)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
