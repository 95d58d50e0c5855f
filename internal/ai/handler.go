package ai

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the AI routes behind limit, a per-user rate limiter.
func (h *Handler) Register(scoped *gin.RouterGroup, limit gin.HandlerFunc) {
	g := scoped.Group("/ai", limit)
	g.POST("/roadmap", h.roadmap)
	g.POST("/summary", h.summary)
}

type roadmapReq struct {
	Instructions string `json:"instructions"`
}

func (h *Handler) roadmap(c *gin.Context) {
	var req roadmapReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpapi.BadRequest(c, "invalid body")
			return
		}
	}

	rm, err := h.svc.GenerateRoadmap(c.Request.Context(), projects.Current(c), req.Instructions)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "roadmap": rm})
}

func (h *Handler) summary(c *gin.Context) {
	sum, err := h.svc.Summarize(c.Request.Context(), projects.Current(c))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "summary": sum})
}
