package bootstrap

import (
	"github.com/gin-gonic/gin"

	"github.com/ba-assist/ba-assist-backend/config"
)

// SetGinMode picks release mode in production and test mode under APP_ENV=test.
func SetGinMode(app config.AppConfig) {
	switch app.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}
}
