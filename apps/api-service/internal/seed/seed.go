// Package seed fills an empty database with development accounts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultUserCount = 10
	DefaultPassword  = "password123"
)

// Config controls what gets seeded
type Config struct {
	Users      int
	Password   string
	BcryptCost int
}

// Users builds the seed accounts: user1 is ADMIN, user2 SUPERADMIN, the rest USER.
// All share one password hash.
func Users(n int, passwordHash string, now time.Time) []*domain.User {
	users := make([]*domain.User, 0, n)
	for i := 1; i <= n; i++ {
		role := domain.RoleUser
		switch i {
		case 1:
			role = domain.RoleAdmin
		case 2:
			role = domain.RoleSuperAdmin
		}
		users = append(users, &domain.User{
			ID:        uuid.NewString(),
			Email:     fmt.Sprintf("user%d@example.com", i),
			Password:  passwordHash,
			Fullname:  fmt.Sprintf("Test User %d", i),
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return users
}

// Run inserts the seed accounts, skipping emails that already exist.
// It returns how many users were created.
func Run(ctx context.Context, repo repository.UserRepository, cfg Config, log *logger.Logger) (int, error) {
	if cfg.Users <= 0 {
		cfg.Users = DefaultUserCount
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cfg.BcryptCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	created := 0
	for _, user := range Users(cfg.Users, string(hash), time.Now().UTC()) {
		if err := repo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				log.Debug("seed user exists", zap.String("email", user.Email))
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", user.Email, err)
		}
		created++
	}
	return created, nil
}
