// Package projects holds the project-scope middleware shared by every
// project-scoped feature; the project feature itself lives in the
// domain, repository, service and http subpackages.
package projects

import (
	"context"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/projects/domain"
)

const (
	CtxProject = "project"
	ParamID    = "project_id"
)

type Resolver interface {
	Resolve(ctx context.Context, userID, publicID string) (*domain.Project, error)
}

// Scope resolves :project_id for the authenticated user. Missing or deleted
// projects are 404, projects of other users 403.
func Scope(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := r.Resolve(c.Request.Context(), auth.UserID(c), c.Param(ParamID))
		if err != nil {
			httpapi.Fail(c, err)
			return
		}
		c.Set(CtxProject, p)
		c.Next()
	}
}

// Current returns the project resolved by Scope.
func Current(c *gin.Context) *domain.Project {
	if v, ok := c.Get(CtxProject); ok {
		if p, ok := v.(*domain.Project); ok {
			return p
		}
	}
	return nil
}
