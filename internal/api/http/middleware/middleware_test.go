package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ba-assist/ba-assist-backend/internal/logging"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seenCtxID, seenGinID string
	var hasLogger bool
	r := gin.New()
	r.Use(RequestID(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		seenCtxID = GetRequestID(c.Request.Context())
		seenGinID = c.GetString(CtxRequestID)
		hasLogger = logging.FromContext(c.Request.Context()) != nil
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	rid := rr.Header().Get("X-Request-Id")
	assert.Len(t, rid, 32)
	assert.Equal(t, rid, seenCtxID)
	assert.Equal(t, rid, seenGinID)
	assert.True(t, hasLogger)
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-Id"))
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(rate.Every(time.Hour), 2, nil)
	r := gin.New()
	r.Use(rl.Handler())
	r.POST("/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client has its own bucket
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1, nil)
	rl.getLimiter("a")
	rl.getLimiter("b")
	assert.Equal(t, 2, rl.size())

	rl.limiters["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	rl.Cleanup(time.Hour)
	assert.Equal(t, 1, rl.size())
}

func TestMetrics_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/projects/:project_id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects/p-1", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}
