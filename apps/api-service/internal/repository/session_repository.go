package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

// SessionRepository defines the interface for session data access.
// Sessions are never deleted by normal flows; terminating sets expires_at to now.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	// GetByID returns nil, nil when the session does not exist
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListActive returns active sessions, most recently active first
	ListActive(ctx context.Context, userID string) ([]*domain.Session, error)
	Touch(ctx context.Context, id string) error
	// UpdateToken swaps oldToken for newToken on an active session
	UpdateToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error
	// Terminate is a no-op on sessions that are already inactive
	Terminate(ctx context.Context, id string) error
	// TerminateAll terminates every active session of userID except exceptID
	TerminateAll(ctx context.Context, userID, exceptID string) (int64, error)
}

const sessionColumns = `id, user_id, token, user_agent, ip, created_at, last_active_at, expires_at`

// PostgresSessionRepository implements SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	s := &domain.Session{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.UserAgent,
		&s.IP,
		&s.CreatedAt,
		&s.LastActiveAt,
		&s.ExpiresAt,
	)
	return s, err
}

// Create creates a new session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.UserAgent,
		session.IP,
		session.CreatedAt,
		session.LastActiveAt,
		session.ExpiresAt,
	)
	return MapPgError(err)
}

// GetByID retrieves a session by ID regardless of its state
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, MapPgError(err)
	}
	return session, nil
}

// ListActive retrieves the active sessions of a user
func (r *PostgresSessionRepository) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY last_active_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, MapPgError(err)
	}
	defer rows.Close()

	sessions := []*domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch records activity on a session
func (r *PostgresSessionRepository) Touch(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_active_at = NOW() WHERE id = $1`, id)
	return MapPgError(err)
}

// UpdateToken stores the rotated refresh token and slides the expiry. The
// write only lands while the row still holds oldToken, so one refresh token
// rotates a session at most once.
func (r *PostgresSessionRepository) UpdateToken(ctx context.Context, id, oldToken, newToken string, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET token = $3, expires_at = $4, last_active_at = NOW()
		WHERE id = $1 AND token = $2 AND expires_at > NOW()
	`
	tag, err := r.pool.Exec(ctx, query, id, oldToken, newToken, expiresAt)
	if err != nil {
		return MapPgError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var active bool
	err = r.pool.QueryRow(ctx, `SELECT expires_at > NOW() FROM sessions WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionInactive
		}
		return MapPgError(err)
	}
	if !active {
		return ErrSessionInactive
	}
	return ErrTokenMismatch
}

var (
	// ErrSessionInactive is returned when rotating a session that was terminated concurrently
	ErrSessionInactive = errors.New("session is not active")
	// ErrTokenMismatch is returned when the session no longer holds the presented refresh token
	ErrTokenMismatch = errors.New("session token mismatch")
)

// Terminate ends a session
func (r *PostgresSessionRepository) Terminate(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET expires_at = NOW() WHERE id = $1 AND expires_at > NOW()`, id)
	return MapPgError(err)
}

// TerminateAll ends the active sessions of a user
func (r *PostgresSessionRepository) TerminateAll(ctx context.Context, userID, exceptID string) (int64, error) {
	query := `
		UPDATE sessions
		SET expires_at = NOW()
		WHERE user_id = $1 AND expires_at > NOW() AND ($2::text = '' OR id <> $2::text)
	`
	tag, err := r.pool.Exec(ctx, query, userID, exceptID)
	if err != nil {
		return 0, MapPgError(err)
	}
	return tag.RowsAffected(), nil
}
