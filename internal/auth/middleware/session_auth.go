package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/auth/session"
)

type Verifier interface {
	Verify(ctx context.Context, raw string) (*session.Claims, error)
}

// SessionAuth authenticates requests from the session cookie, falling back
// to an Authorization: Bearer header for non-browser clients.
type SessionAuth struct {
	verifier   Verifier
	cookieName string
}

func NewSessionAuth(v Verifier, cookieName string) *SessionAuth {
	return &SessionAuth{verifier: v, cookieName: cookieName}
}

// Require rejects requests without a valid, unrevoked session.
func (a *SessionAuth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := a.extractToken(c)
		if raw == "" {
			httpapi.Fail(c, apperr.New(apperr.ErrUnauthorized, "not authenticated"))
			return
		}
		claims, err := a.verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			httpapi.Fail(c, err)
			return
		}
		auth.SetSession(c, claims.UserID(), claims.ID, claims.ExpiresAt())
		c.Next()
	}
}

// Optional sets the session when one is valid and never rejects.
func (a *SessionAuth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := a.extractToken(c); raw != "" {
			if claims, err := a.verifier.Verify(c.Request.Context(), raw); err == nil {
				auth.SetSession(c, claims.UserID(), claims.ID, claims.ExpiresAt())
			}
		}
		c.Next()
	}
}

func (a *SessionAuth) extractToken(c *gin.Context) string {
	if v, err := c.Cookie(a.cookieName); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
