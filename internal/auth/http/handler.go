package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/auth/domain"
	"github.com/ba-assist/ba-assist-backend/internal/auth/middleware"
	"github.com/ba-assist/ba-assist-backend/internal/auth/service"
)

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type Handler struct {
	authService *service.AuthService
	cookie      CookieConfig
}

func New(authService *service.AuthService, cookie CookieConfig) *Handler {
	return &Handler{authService: authService, cookie: cookie}
}

// Register mounts /auth. limit guards the credential endpoints.
func (h *Handler) Register(rg *gin.RouterGroup, sa *middleware.SessionAuth, limit gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/register", limit, h.SignUp)
	g.POST("/login", limit, h.Login)
	g.POST("/forgot-password", limit, h.ForgotPassword)
	g.POST("/reset-password", limit, h.ResetPassword)
	g.POST("/firebase", limit, h.FirebaseSignIn)
	g.POST("/logout", sa.Optional(), h.Logout)

	g.GET("/me", sa.Require(), h.Me)
	g.PATCH("/me", sa.Require(), h.UpdateMe)
	g.POST("/password", sa.Require(), h.ChangePassword)
}

func (h *Handler) setSessionCookie(c *gin.Context, s *service.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, s.Token, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *Handler) SignUp(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	s, err := h.authService.Register(c.Request.Context(), domain.RegisterInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	h.setSessionCookie(c, s)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "user": s.User})
}

func (h *Handler) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	s, err := h.authService.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	h.setSessionCookie(c, s)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": s.User})
}

// Logout always clears the cookie, even when the session was already invalid.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), auth.SessionID(c), auth.SessionExpiry(c)); err != nil {
		httpapi.Fail(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var body struct {
		Name *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == nil {
		httpapi.BadRequest(c, "name is required")
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), auth.UserID(c), *body.Name)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), auth.UserID(c), body.CurrentPassword, body.NewPassword); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), body.Email); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), body.Token, body.Password); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) FirebaseSignIn(c *gin.Context) {
	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		httpapi.BadRequest(c, "invalid request body")
		return
	}

	s, err := h.authService.FirebaseSignIn(c.Request.Context(), body.IDToken)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	h.setSessionCookie(c, s)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": s.User})
}
