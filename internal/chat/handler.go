package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(scoped *gin.RouterGroup) {
	scoped.GET("/chat", h.history)
	scoped.POST("/chat", h.post)
	scoped.DELETE("/chat", h.clear)
}

func (h *Handler) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpapi.BadRequest(c, "limit must be a number")
			return
		}
		limit = n
	}

	items, err := h.svc.History(c.Request.Context(), projects.Current(c).ID, limit)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": items})
}

type postReq struct {
	Message string `json:"message"`
}

func (h *Handler) post(c *gin.Context) {
	var req postReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	userMsg, reply, err := h.svc.Post(c.Request.Context(), projects.Current(c), auth.UserID(c), req.Message)
	if err != nil {
		if userMsg == nil {
			httpapi.Fail(c, err)
			return
		}
		// the user's message was stored; report it alongside the failure
		c.AbortWithStatusJSON(apperr.Status(err), gin.H{"ok": false, "error": apperr.Message(err), "message": userMsg})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": userMsg, "reply": reply})
}

func (h *Handler) clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": n})
}
