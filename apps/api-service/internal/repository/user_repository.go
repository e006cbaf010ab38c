package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// GetByID returns nil when absent; soft deleted users only with includeDeleted
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error)
	// GetByEmail only considers users that are not soft deleted
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

// ErrUserNotFound is returned by mutations that matched no row
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, email, password, name, photo, role, created_at, updated_at, deleted_at`

var userSortColumns = map[domain.UserSortField]string{
	domain.SortByCreatedAt: "created_at",
	domain.SortByFullname:  "name",
	domain.SortByEmail:     "email",
}

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.Fullname,
		&u.Photo,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	return u, err
}

// Create inserts a user
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password, name, photo, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Password,
		user.Fullname,
		user.Photo,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return MapPgError(err)
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, MapPgError(err)
	}
	return user, nil
}

// GetByEmail retrieves an active user by email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, MapPgError(err)
	}
	return user, nil
}

// List returns one page of non-deleted users and the total match count
func (r *PostgresUserRepository) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error) {
	where, args := buildUserWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, MapPgError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, where, userOrderBy(filter), len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, MapPgError(err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, filter.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapPgError(err)
	}
	return users, total, nil
}

func buildUserWhere(filter domain.UserFilter) (string, []any) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes a search term match literally inside a LIKE pattern
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

func userOrderBy(filter domain.UserFilter) string {
	column, ok := userSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	// id breaks ties so pages are stable
	return column + " " + direction + ", id " + direction
}

// Update writes the editable fields of an active user
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, photo = $4, role = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`
	user.UpdatedAt = time.Now().UTC()
	return r.execOne(ctx, query,
		user.ID,
		user.Email,
		user.Fullname,
		user.Photo,
		user.Role,
		user.UpdatedAt,
	)
}

// UpdatePassword stores a new password hash
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, passwordHash)
}

// SoftDelete marks a user deleted
func (r *PostgresUserRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id)
}

// HardDelete removes the user row; sessions cascade
func (r *PostgresUserRepository) HardDelete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// Restore clears a soft delete
func (r *PostgresUserRepository) Restore(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`
	return r.execOne(ctx, query, id)
}

func (r *PostgresUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return MapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
