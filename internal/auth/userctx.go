package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID        = "user_id"
	CtxSessionID     = "session_id"
	CtxSessionExpiry = "session_expires_at"
)

// UserID returns the authenticated user's id, or "" outside RequireUser.
func UserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserID))
}

func SessionID(c *gin.Context) string {
	return c.GetString(CtxSessionID)
}

func SessionExpiry(c *gin.Context) time.Time {
	return c.GetTime(CtxSessionExpiry)
}

func SetSession(c *gin.Context, userID, sessionID string, expiresAt time.Time) {
	c.Set(CtxUserID, userID)
	c.Set(CtxSessionID, sessionID)
	c.Set(CtxSessionExpiry, expiresAt)
}
