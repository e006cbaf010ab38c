package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/service"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	"github.com/yehezkieldio/virtualqueue/pkg/response"
	"go.uber.org/zap"
)

const (
	authContextKey = "auth"
	currentUserKey = "current_user"
)

// Authenticator validates an access token for one request
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.AuthContext, error)
}

// UserLookup loads the user behind an authenticated request
type UserLookup interface {
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error)
}

// Auth is the auth gate. The access token comes from the accessToken cookie,
// or a Bearer header for non-browser clients. A rotated token is written back
// as a fresh cookie.
func Auth(auth Authenticator, cookies *Cookies, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ReadCookie(c, AccessTokenCookie)
		if token == "" {
			token = bearerToken(c)
		}

		authCtx, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, message := authErrorStatus(err)
			if status == http.StatusInternalServerError {
				log.Error("authentication failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			}
			response.Abort(c, status, message)
			return
		}

		if authCtx.Rotated {
			cookies.SetAccess(c, authCtx.AccessToken)
		}

		c.Set(authContextKey, authCtx)
		c.Next()
	}
}

func authErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "Token has been revoked"
	case errors.Is(err, service.ErrSessionTerminated):
		return http.StatusUnauthorized, "Session has been terminated"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusForbidden, "Token expired"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusForbidden, "Invalid token"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// GetAuthContext returns the context attached by Auth
func GetAuthContext(c *gin.Context) (*domain.AuthContext, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return nil, false
	}
	authCtx, ok := v.(*domain.AuthContext)
	return authCtx, ok
}

// CurrentUser loads the authenticated user. Must run after Auth.
func CurrentUser(users UserLookup, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, ok := GetAuthContext(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := users.GetByID(c.Request.Context(), authCtx.UserID, false)
		if err != nil {
			log.Error("failed to load current user", zap.String("user_id", authCtx.UserID), zap.Error(err))
			response.Abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user == nil {
			response.Abort(c, http.StatusUnauthorized, "User not found.")
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// GetCurrentUser returns the user loaded by CurrentUser
func GetCurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}

// RequireRole allows only the listed roles. Must run after CurrentUser.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "You do not have permission to perform this action.")
	}
}

// OptionalUser attaches the caller when a valid access token is present and
// lets the request through anonymously otherwise.
func OptionalUser(auth Authenticator, users UserLookup, cookies *Cookies) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ReadCookie(c, AccessTokenCookie)
		if token == "" {
			token = bearerToken(c)
		}
		if token == "" {
			c.Next()
			return
		}

		authCtx, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}
		if authCtx.Rotated {
			cookies.SetAccess(c, authCtx.AccessToken)
		}
		c.Set(authContextKey, authCtx)

		if user, err := users.GetByID(c.Request.Context(), authCtx.UserID, false); err == nil && user != nil {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}
