package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/domain"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/middleware"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
)

// Routes holds what RegisterRoutes mounts
type Routes struct {
	Auth   *AuthHandler
	Users  *UserHandler
	Health *HealthHandler

	Authenticator middleware.Authenticator
	UserLookup    middleware.UserLookup
	Cookies       *middleware.Cookies
	Log           *logger.Logger

	// Idempotency guards POST /users when set
	Idempotency gin.HandlerFunc
}

// RegisterRoutes mounts every route at the root of r
func RegisterRoutes(r gin.IRouter, rt Routes) {
	r.GET("/health", rt.Health.Health)
	r.GET("/ready", rt.Health.Ready)

	requireAuth := middleware.Auth(rt.Authenticator, rt.Cookies, rt.Log)
	currentUser := middleware.CurrentUser(rt.UserLookup, rt.Log)
	adminOnly := middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)

	auth := r.Group("/auth")
	{
		auth.POST("/signin", rt.Auth.SignIn)
		auth.POST("/refresh", rt.Auth.Refresh)
		auth.POST("/signout", rt.Auth.SignOut)

		protected := auth.Group("", requireAuth)
		protected.GET("/me", rt.Auth.Me)
		protected.GET("/sessions", rt.Auth.ListSessions)
		protected.DELETE("/sessions", rt.Auth.TerminateAllSessions)
		protected.DELETE("/sessions/:sessionId", rt.Auth.TerminateSession)
	}

	users := r.Group("/users")
	{
		create := []gin.HandlerFunc{middleware.OptionalUser(rt.Authenticator, rt.UserLookup, rt.Cookies)}
		if rt.Idempotency != nil {
			create = append(create, rt.Idempotency)
		}
		users.POST("", append(create, rt.Users.Create)...)

		member := users.Group("", requireAuth, currentUser)
		member.GET("/:id", rt.Users.Get)
		member.PUT("/:id", rt.Users.Update)
		member.PATCH("/:id", rt.Users.Patch)
		member.PUT("/:id/password", rt.Users.ChangePassword)

		admin := users.Group("", requireAuth, currentUser, adminOnly)
		admin.GET("", rt.Users.List)
		admin.DELETE("/:id", rt.Users.Delete)
		admin.POST("/:id/restore", rt.Users.Restore)
	}
}
