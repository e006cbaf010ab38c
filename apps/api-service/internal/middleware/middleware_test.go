package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/service"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFunc func(ctx context.Context, token string) (*domain.AuthContext, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (*domain.AuthContext, error) {
	return f(ctx, token)
}

type userLookupFunc func(ctx context.Context, id string, includeDeleted bool) (*domain.User, error)

func (f userLookupFunc) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
	return f(ctx, id, includeDeleted)
}

func testCookies() *Cookies {
	return NewCookies(true, 15*time.Minute, 30*24*time.Hour)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://app.example.com"}
	r.Use(CORSWithConfig(cfg))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin is echoed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://app.example.com")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "https://app.example.com")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestAuth_ErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		details string
	}{
		{service.ErrMissingToken, http.StatusUnauthorized, "Unauthorized"},
		{service.ErrTokenRevoked, http.StatusUnauthorized, "Token has been revoked"},
		{service.ErrSessionTerminated, http.StatusUnauthorized, "Session has been terminated"},
		{service.ErrTokenExpired, http.StatusForbidden, "Token expired"},
		{fmt.Errorf("%w: bad signature", service.ErrInvalidToken), http.StatusForbidden, "Invalid token"},
		{errors.New("redis down"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.details, func(t *testing.T) {
			auth := authFunc(func(ctx context.Context, token string) (*domain.AuthContext, error) {
				return nil, tt.err
			})
			r := gin.New()
			r.GET("/me", Auth(auth, testCookies(), logger.NewNop()), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.details, body["details"])
			assert.Equal(t, "error", body["message"])
			assert.Equal(t, "/me", body["path"])
		})
	}
}

func TestAuth_TokenSources(t *testing.T) {
	var seen string
	auth := authFunc(func(ctx context.Context, token string) (*domain.AuthContext, error) {
		seen = token
		return &domain.AuthContext{UserID: "user-1", SessionID: "s1", AccessToken: token}, nil
	})
	r := gin.New()
	r.GET("/me", Auth(auth, testCookies(), logger.NewNop()), func(c *gin.Context) {
		authCtx, ok := GetAuthContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, authCtx.UserID)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cookie-token", seen, "cookie wins over header")
	assert.Nil(t, findCookie(w, AccessTokenCookie), "no rotation, no cookie")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer header-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, "header-token", seen)
}

func TestAuth_RotationSetsCookie(t *testing.T) {
	auth := authFunc(func(ctx context.Context, token string) (*domain.AuthContext, error) {
		return &domain.AuthContext{UserID: "user-1", SessionID: "s1", AccessToken: "fresh", Rotated: true}, nil
	})
	r := gin.New()
	r.GET("/me", Auth(auth, testCookies(), logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "stale"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, AccessTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, "fresh", cookie.Value)
	assert.Equal(t, 900, cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestCookies_SetAndClear(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	k := NewCookies(false, 15*time.Minute, 30*24*time.Hour)

	k.SetRefresh(c, "refresh")
	refresh := findCookie(w, RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, 2592000, refresh.MaxAge)
	assert.False(t, refresh.Secure)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	k.Clear(c)
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		cookie := findCookie(w, name)
		require.NotNil(t, cookie, name)
		assert.Empty(t, cookie.Value)
		assert.Equal(t, -1, cookie.MaxAge)
	}
}

func TestRequireRole(t *testing.T) {
	users := map[string]*domain.User{
		"admin-1": {ID: "admin-1", Role: domain.RoleAdmin},
		"user-1":  {ID: "user-1", Role: domain.RoleUser},
	}
	lookup := userLookupFunc(func(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
		return users[id], nil
	})

	newRouter := func(userID string) *gin.Engine {
		auth := authFunc(func(ctx context.Context, token string) (*domain.AuthContext, error) {
			return &domain.AuthContext{UserID: userID, SessionID: "s1"}, nil
		})
		r := gin.New()
		r.GET("/users",
			Auth(auth, testCookies(), logger.NewNop()),
			CurrentUser(lookup, logger.NewNop()),
			RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin),
			func(c *gin.Context) { c.Status(http.StatusOK) },
		)
		return r
	}

	tests := []struct {
		userID string
		status int
	}{
		{"admin-1", http.StatusOK},
		{"user-1", http.StatusForbidden},
		{"ghost", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestLogger_DoesNotAlterResponse(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(logger.NewNop(), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOptionalUser(t *testing.T) {
	admin := &domain.User{ID: "admin-1", Role: domain.RoleAdmin}
	auth := authFunc(func(ctx context.Context, token string) (*domain.AuthContext, error) {
		if token != "good" {
			return nil, service.ErrInvalidToken
		}
		return &domain.AuthContext{UserID: "admin-1", SessionID: "s1"}, nil
	})
	lookup := userLookupFunc(func(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
		return admin, nil
	})

	r := gin.New()
	r.POST("/users", OptionalUser(auth, lookup, testCookies()), func(c *gin.Context) {
		if user, ok := GetCurrentUser(c); ok {
			c.String(http.StatusOK, user.ID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	for token, want := range map[string]string{"": "anonymous", "bad": "anonymous", "good": "admin-1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String())
	}
}
