package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/dto"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/middleware"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/service"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"github.com/yehezkieldio/virtualqueue/pkg/response"
	"go.uber.org/zap"
)

// UserHandler handles user management HTTP requests
type UserHandler struct {
	userService service.UserService
	log         *logger.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

// List lists users
// GET /users
func (h *UserHandler) List(c *gin.Context) {
	var query dto.ListUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	filter, err := query.ToFilter()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	users, total, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, "failed to list users", err)
		return
	}

	response.Paginated(c, users, response.NewPageMeta(filter.Page, filter.Limit, total))
}

// Get returns one user
// GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	actor, _ := middleware.GetCurrentUser(c)

	user, err := h.userService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, "failed to get user", err)
		return
	}

	response.Success(c, user)
}

// Create registers a user. Admin callers may pick a role.
// POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, _ := middleware.GetCurrentUser(c)
	if _, err := h.userService.Create(c.Request.Context(), actor, &req); err != nil {
		h.writeError(c, "failed to create user", err)
		return
	}

	response.Created(c, "User created successfully.")
}

// Update replaces the editable fields of a user
// PUT /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, _ := middleware.GetCurrentUser(c)
	if _, err := h.userService.Update(c.Request.Context(), actor, c.Param("id"), &req); err != nil {
		h.writeError(c, "failed to update user", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Patch updates the fields present in the body
// PATCH /users/:id
func (h *UserHandler) Patch(c *gin.Context) {
	var req dto.PatchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, _ := middleware.GetCurrentUser(c)
	if _, err := h.userService.Patch(c.Request.Context(), actor, c.Param("id"), &req); err != nil {
		h.writeError(c, "failed to patch user", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ChangePassword changes a password and signs the user out everywhere
// PUT /users/:id/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actor, _ := middleware.GetCurrentUser(c)
	if err := h.userService.ChangePassword(c.Request.Context(), actor, c.Param("id"), &req); err != nil {
		h.writeError(c, "failed to change password", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete soft deletes a user, or removes it with ?permanent=true
// DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	permanent := c.Query("permanent") == "true"

	actor, _ := middleware.GetCurrentUser(c)
	if err := h.userService.Delete(c.Request.Context(), actor, c.Param("id"), permanent); err != nil {
		h.writeError(c, "failed to delete user", err)
		return
	}

	if permanent {
		response.Success(c, "User permanently deleted.")
		return
	}
	response.Success(c, "User deleted.")
}

// Restore clears a soft delete
// POST /users/:id/restore
func (h *UserHandler) Restore(c *gin.Context) {
	actor, _ := middleware.GetCurrentUser(c)
	if err := h.userService.Restore(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, "failed to restore user", err)
		return
	}

	response.Success(c, "User restored successfully.")
}

func (h *UserHandler) writeError(c *gin.Context, msg string, err error) {
	var pwErr *service.PasswordError
	var dbErr *repository.DBError

	switch {
	case errors.As(err, &pwErr):
		response.BadRequest(c, pwErr.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, "User not found.")
	case errors.Is(err, service.ErrEmailInUse):
		response.Conflict(c, "Email address is already in use")
	case errors.Is(err, service.ErrInvalidEmail):
		response.BadRequest(c, "Invalid email format")
	case errors.Is(err, service.ErrInvalidRole):
		response.BadRequest(c, "Invalid role value provided")
	case errors.Is(err, service.ErrSamePassword):
		response.BadRequest(c, "New password must be different from the old password.")
	case errors.Is(err, service.ErrOldPasswordMismatch):
		response.BadRequest(c, "Old password is incorrect.")
	case errors.Is(err, service.ErrUserNotDeleted):
		response.BadRequest(c, "User is not deleted.")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "You do not have permission to perform this action.")
	case errors.As(err, &dbErr) && errors.Is(err, repository.ErrConflict):
		response.Conflict(c, dbErr.Message)
	case errors.As(err, &dbErr) && !errors.Is(err, repository.ErrUnavailable):
		response.BadRequest(c, dbErr.Message)
	default:
		h.log.Error(msg, zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		response.InternalError(c, "Internal server error")
	}
}
