package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/dto"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/middleware"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/service"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"github.com/yehezkieldio/virtualqueue/pkg/response"
	"go.uber.org/zap"
)

// AuthHandler handles authentication and session HTTP requests
type AuthHandler struct {
	authService service.AuthService
	users       middleware.UserLookup
	cookies     *middleware.Cookies
	log         *logger.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, users middleware.UserLookup, cookies *middleware.Cookies, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		cookies:     cookies,
		log:         log,
	}
}

// SignIn handles user sign-in
// POST /auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if valid, msg := dto.ValidateEmail(req.Email); !valid {
		response.BadRequest(c, msg)
		return
	}

	pair, err := h.authService.SignIn(c.Request.Context(), &req, dto.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, "User not found.")
		case errors.Is(err, service.ErrInvalidPassword):
			response.BadRequest(c, "Invalid password.")
		default:
			h.log.Error("sign-in failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
			response.InternalError(c, "Failed to sign in")
		}
		return
	}

	h.cookies.SetAccess(c, pair.AccessToken)
	h.cookies.SetRefresh(c, pair.RefreshToken)
	response.Success(c, pair)
}

// Refresh rotates the refresh token. The token comes from the refreshToken
// cookie or, failing that, the JSON body.
// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := middleware.ReadCookie(c, middleware.RefreshTokenCookie)
	if token == "" {
		var req dto.RefreshRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
		}
		token = req.RefreshToken
	}

	pair, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingToken):
			response.Unauthorized(c, "Unauthorized")
		case errors.Is(err, service.ErrTokenRevoked):
			response.Unauthorized(c, "Token has been revoked")
		case errors.Is(err, service.ErrSessionTerminated):
			response.Unauthorized(c, "Session has been terminated")
		case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrInvalidToken):
			response.Unauthorized(c, "Invalid refresh token")
		default:
			h.log.Error("token refresh failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
			response.InternalError(c, "Failed to refresh token")
		}
		return
	}

	h.cookies.SetAccess(c, pair.AccessToken)
	h.cookies.SetRefresh(c, pair.RefreshToken)
	response.Success(c, pair)
}

// SignOut revokes whatever tokens the client holds. Cookies are cleared even
// when revocation fails.
// POST /auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	access := middleware.ReadCookie(c, middleware.AccessTokenCookie)
	refresh := middleware.ReadCookie(c, middleware.RefreshTokenCookie)

	err := h.authService.SignOut(c.Request.Context(), access, refresh)
	h.cookies.Clear(c)
	if err != nil {
		h.log.Error("sign-out failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		response.InternalError(c, "Failed to sign out")
		return
	}

	response.Success(c, "Successfully signed out")
}

// Me returns the authenticated user
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), authCtx.UserID, false)
	if err != nil {
		h.log.Error("failed to load user", zap.String("user_id", authCtx.UserID), zap.Error(err))
		response.InternalError(c, "Internal server error")
		return
	}
	if user == nil {
		response.NotFound(c, "User not found.")
		return
	}

	response.Success(c, user)
}

// ListSessions lists the caller's active sessions, flagging the current one
// GET /auth/sessions
func (h *AuthHandler) ListSessions(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	sessions, err := h.authService.ListSessions(c.Request.Context(), authCtx.UserID)
	if err != nil {
		h.log.Error("failed to list sessions", zap.String("user_id", authCtx.UserID), zap.Error(err))
		response.InternalError(c, "Failed to list sessions")
		return
	}

	response.Success(c, gin.H{"sessions": dto.NewSessionResponses(sessions, authCtx.SessionID)})
}

// TerminateSession terminates one of the caller's sessions
// DELETE /auth/sessions/:sessionId
func (h *AuthHandler) TerminateSession(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	err := h.authService.TerminateSession(c.Request.Context(), authCtx.UserID, c.Param("sessionId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.NotFound(c, "Session not found")
		case errors.Is(err, service.ErrSessionForbidden):
			response.Forbidden(c, "You cannot terminate this session")
		default:
			h.log.Error("failed to terminate session", zap.String("user_id", authCtx.UserID), zap.Error(err))
			response.InternalError(c, "Failed to terminate session")
		}
		return
	}

	response.Success(c, "Session terminated successfully")
}

// TerminateAllSessions terminates every session of the caller, optionally
// keeping the current one
// DELETE /auth/sessions?exceptCurrent=true|false
func (h *AuthHandler) TerminateAllSessions(c *gin.Context) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	var except string
	switch c.Query("exceptCurrent") {
	case "true":
		except = authCtx.SessionID
	case "false", "":
	default:
		response.BadRequest(c, "exceptCurrent must be true or false")
		return
	}

	n, err := h.authService.TerminateAllSessions(c.Request.Context(), authCtx.UserID, except)
	if err != nil {
		h.log.Error("failed to terminate sessions", zap.String("user_id", authCtx.UserID), zap.Error(err))
		response.InternalError(c, "Failed to terminate sessions")
		return
	}

	message := "All sessions terminated successfully"
	if except != "" {
		message = "All other sessions terminated successfully"
	}
	response.JSON(c, http.StatusOK, gin.H{"message": message, "terminated": n})
}
