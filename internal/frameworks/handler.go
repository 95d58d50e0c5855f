package frameworks

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
)

type Reader interface {
	List(ctx context.Context) ([]Framework, error)
	Get(ctx context.Context, idOrSlug string) (*Framework, error)
}

type Handler struct {
	repo Reader
}

func NewHandler(repo Reader) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/frameworks", h.list)
	rg.GET("/frameworks/:framework_id", h.get)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context())
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "frameworks": items})
}

func (h *Handler) get(c *gin.Context) {
	f, err := h.repo.Get(c.Request.Context(), c.Param("framework_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "framework": f})
}
