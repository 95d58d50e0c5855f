package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
)

// Fail writes the JSON error body for err. Server-side failures are logged
// with the full error; the client only sees apperr.Message.
func Fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed",
			zap.Error(err),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": apperr.Message(err)})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}
