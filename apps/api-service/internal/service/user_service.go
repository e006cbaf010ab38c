package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
)

var (
	ErrEmailInUse          = errors.New("email address is already in use")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrInvalidRole         = errors.New("invalid role value provided")
	ErrForbidden           = errors.New("forbidden")
	ErrSamePassword        = errors.New("new password must be different from the old password")
	ErrOldPasswordMismatch = errors.New("old password is incorrect")
	ErrUserNotDeleted      = errors.New("user is not deleted")
)

// PasswordError lists the password rules a request violated
type PasswordError struct {
	Issues []string
}

func (e *PasswordError) Error() string {
	return strings.Join(e.Issues, ", ")
}

// UserServiceConfig holds configuration for UserService
type UserServiceConfig struct {
	// Environment selects the password rule set
	Environment string
	BcryptCost  int
}

// UserService manages user accounts. actor is the authenticated caller,
// nil for anonymous registration.
type UserService interface {
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error)
	Get(ctx context.Context, actor *domain.User, id string) (*domain.User, error)
	Create(ctx context.Context, actor *domain.User, req *dto.CreateUserRequest) (*domain.User, error)
	Update(ctx context.Context, actor *domain.User, id string, req *dto.UpdateUserRequest) (*domain.User, error)
	Patch(ctx context.Context, actor *domain.User, id string, req *dto.PatchUserRequest) (*domain.User, error)
	ChangePassword(ctx context.Context, actor *domain.User, id string, req *dto.ChangePasswordRequest) error
	Delete(ctx context.Context, actor *domain.User, id string, permanent bool) error
	Restore(ctx context.Context, actor *domain.User, id string) error
}

type userService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	config   UserServiceConfig
	log      *logger.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	config UserServiceConfig,
	log *logger.Logger,
) UserService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logger.Get()
	}
	return &userService{
		users:    users,
		sessions: sessions,
		config:   config,
		log:      log,
	}
}

func (s *userService) List(ctx context.Context, filter domain.UserFilter) (users []*domain.User, total int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.list")
	defer func() { finishSpan(span, err) }()

	return s.users.List(ctx, filter)
}

func (s *userService) Get(ctx context.Context, actor *domain.User, id string) (user *domain.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.get")
	defer func() { finishSpan(span, err) }()

	if err := authorize(actor, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *userService) Create(ctx context.Context, actor *domain.User, req *dto.CreateUserRequest) (user *domain.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.create")
	defer func() { finishSpan(span, err) }()

	email := normalizeEmail(req.Email)
	if ok, _ := dto.ValidateEmail(email); !ok {
		return nil, ErrInvalidEmail
	}
	if issues := dto.PasswordIssues(req.Password, s.config.Environment); len(issues) > 0 {
		return nil, &PasswordError{Issues: issues}
	}

	role := domain.RoleUser
	if req.Role != nil && actor != nil && actor.Role.IsAdmin() {
		if err := assignableRole(actor, *req.Role); err != nil {
			return nil, err
		}
		role = *req.Role
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user = &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hash),
		Fullname:  strings.TrimSpace(req.Fullname),
		Photo:     req.Photo,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

func (s *userService) Update(ctx context.Context, actor *domain.User, id string, req *dto.UpdateUserRequest) (user *domain.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.update")
	defer func() { finishSpan(span, err) }()

	return s.apply(ctx, actor, id, &dto.PatchUserRequest{
		Email:    &req.Email,
		Fullname: &req.Fullname,
		Photo:    req.Photo,
		Role:     req.Role,
	}, true)
}

func (s *userService) Patch(ctx context.Context, actor *domain.User, id string, req *dto.PatchUserRequest) (user *domain.User, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.patch")
	defer func() { finishSpan(span, err) }()

	return s.apply(ctx, actor, id, req, false)
}

// apply writes the fields of req; replace also clears a missing photo
func (s *userService) apply(ctx context.Context, actor *domain.User, id string, req *dto.PatchUserRequest, replace bool) (*domain.User, error) {
	if err := authorize(actor, id); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardSuperAdmin(actor, user); err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if ok, _ := dto.ValidateEmail(email); !ok {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if req.Fullname != nil {
		user.Fullname = strings.TrimSpace(*req.Fullname)
	}
	if req.Photo != nil || replace {
		user.Photo = req.Photo
	}
	if req.Role != nil && *req.Role != user.Role {
		if err := assignableRole(actor, *req.Role); err != nil {
			return nil, err
		}
		user.Role = *req.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}
	return user, nil
}

// ChangePassword replaces the password and signs the user out everywhere.
// Admins changing another user's password skip the old password check.
func (s *userService) ChangePassword(ctx context.Context, actor *domain.User, id string, req *dto.ChangePasswordRequest) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.change_password")
	defer func() { finishSpan(span, err) }()

	if err := authorize(actor, id); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := guardSuperAdmin(actor, user); err != nil {
		return err
	}

	if actor.ID == id {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)) != nil {
			return ErrOldPasswordMismatch
		}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) == nil {
		return ErrSamePassword
	}
	if issues := dto.PasswordIssues(req.Password, s.config.Environment); len(issues) > 0 {
		return &PasswordError{Issues: issues}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, id, string(hash)); err != nil {
		return mapUserWriteError(err)
	}

	s.terminateSessions(ctx, id)
	return nil
}

func (s *userService) Delete(ctx context.Context, actor *domain.User, id string, permanent bool) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.delete")
	defer func() { finishSpan(span, err) }()
	span.SetAttributes(attribute.Bool("delete.permanent", permanent))

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := guardSuperAdmin(actor, user); err != nil {
		return err
	}

	s.terminateSessions(ctx, id)

	if permanent {
		err = s.users.HardDelete(ctx, id)
	} else {
		err = s.users.SoftDelete(ctx, id)
	}
	return mapUserWriteError(err)
}

func (s *userService) Restore(ctx context.Context, actor *domain.User, id string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.users.restore")
	defer func() { finishSpan(span, err) }()

	user, err := s.users.GetByID(ctx, id, true)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := guardSuperAdmin(actor, user); err != nil {
		return err
	}
	if !user.IsDeleted() {
		return ErrUserNotDeleted
	}
	return mapUserWriteError(s.users.Restore(ctx, id))
}

func (s *userService) load(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) terminateSessions(ctx context.Context, userID string) {
	n, err := s.sessions.TerminateAll(ctx, userID, "")
	if err != nil {
		s.log.Warn("failed to terminate user sessions", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.log.Debug("terminated user sessions", zap.String("user_id", userID), zap.Int64("count", n))
}

// authorize allows the user themselves and admins
func authorize(actor *domain.User, id string) error {
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID == id || actor.Role.IsAdmin() {
		return nil
	}
	return ErrForbidden
}

// guardSuperAdmin keeps SUPERADMIN accounts out of reach of everyone but
// other SUPERADMINs and the account itself
func guardSuperAdmin(actor, target *domain.User) error {
	if target.Role != domain.RoleSuperAdmin {
		return nil
	}
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID == target.ID || actor.Role == domain.RoleSuperAdmin {
		return nil
	}
	return ErrForbidden
}

// assignableRole only lets admins grant roles; SUPERADMIN needs a SUPERADMIN
func assignableRole(actor *domain.User, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if actor == nil || !actor.Role.IsAdmin() {
		return ErrForbidden
	}
	if role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}
	return nil
}

func mapUserWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrEmailInUse
	default:
		return err
	}
}
