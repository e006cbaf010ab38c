package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Cookies writes the session cookies
type Cookies struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewCookies creates cookie settings; Secure is meant for production
func NewCookies(secure bool, accessTTL, refreshTTL time.Duration) *Cookies {
	return &Cookies{Secure: secure, AccessTTL: accessTTL, RefreshTTL: refreshTTL}
}

func (k *Cookies) set(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetAccess writes the access token cookie
func (k *Cookies) SetAccess(c *gin.Context, token string) {
	k.set(c, AccessTokenCookie, token, int(k.AccessTTL.Seconds()))
}

// SetRefresh writes the refresh token cookie
func (k *Cookies) SetRefresh(c *gin.Context, token string) {
	k.set(c, RefreshTokenCookie, token, int(k.RefreshTTL.Seconds()))
}

// Clear expires both cookies
func (k *Cookies) Clear(c *gin.Context) {
	k.set(c, AccessTokenCookie, "", -1)
	k.set(c, RefreshTokenCookie, "", -1)
}

// ReadCookie returns the named cookie value or ""
func ReadCookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
