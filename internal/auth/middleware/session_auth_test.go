package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/auth/session"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(_ context.Context, raw string) (*session.Claims, error) {
	uid, ok := s[raw]
	if !ok {
		return nil, apperr.New(apperr.ErrUnauthorized, "not authenticated")
	}
	return &session.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uid,
		ID:        "jti-" + uid,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, nil
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": auth.UserID(c), "session_id": auth.SessionID(c)})
	})
	return r
}

func TestRequire(t *testing.T) {
	a := NewSessionAuth(stubVerifier{"good": "u-1"}, "ba_session")
	r := newRouter(a.Require())

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
		body   string
	}{
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "ba_session", Value: "good"}) }, http.StatusOK, `"user_id":"u-1"`},
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusOK, `"session_id":"jti-u-1"`},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, `"ok":false`},
		{"invalid", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "ba_session", Value: "bad"}) }, http.StatusUnauthorized, "not authenticated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestOptional(t *testing.T) {
	a := NewSessionAuth(stubVerifier{"good": "u-1"}, "ba_session")
	r := newRouter(a.Optional())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "ba_session", Value: "bad"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)
}
