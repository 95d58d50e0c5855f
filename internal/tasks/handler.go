package tasks

import (
	"encoding/json"
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

func (h *Handler) Register(scoped *gin.RouterGroup) {
	g := scoped.Group("/tasks")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PATCH("/:task_id", h.update)
	g.DELETE("/:task_id", h.delete)
}

// nullableString records whether a JSON field was present and whether it
// was null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

type createReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

type updateReq struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	DueDate     nullableString `json:"due_date"`
	Position    *int           `json:"position"`
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), projects.Current(c).ID, c.Query("status"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tasks": items})
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	in := CreateInput{Title: req.Title, Description: req.Description, Priority: req.Priority}
	if req.DueDate != "" {
		d, err := ParseDate(req.DueDate)
		if err != nil {
			httpapi.Fail(c, err)
			return
		}
		in.DueDate = d
	}

	t, err := h.svc.Create(c.Request.Context(), projects.Current(c).ID, in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "task": t})
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	in := UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Position:    req.Position,
	}
	if req.DueDate.Set {
		if req.DueDate.Value == nil || *req.DueDate.Value == "" {
			in.ClearDueDate = true
		} else {
			d, err := ParseDate(*req.DueDate.Value)
			if err != nil {
				httpapi.Fail(c, err)
				return
			}
			in.DueDate = d
		}
	}

	t, err := h.svc.Update(c.Request.Context(), projects.Current(c).ID, c.Param("task_id"), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "task": t})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), projects.Current(c).ID, c.Param("task_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
