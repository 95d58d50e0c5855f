// Package testutil holds helpers for handler tests. Production code must not
// import it.
package testutil

import (
	"github.com/gin-gonic/gin"

	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
	"github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

// WithProject injects p as the resolved project and its owner as the
// session user, in place of auth and projects.Scope.
func WithProject(p *domain.Project) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(projects.CtxProject, p)
		auth.SetSession(c, p.UserID, "test-session", p.CreatedAt)
		c.Next()
	}
}
