package processes

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
	g := scoped.Group("/processes")
	g.GET("", h.list)
	g.GET("/tree", h.tree)
	g.POST("", h.create)
	g.PATCH("/:process_id", h.update)
	g.DELETE("/:process_id", h.delete)
}

// parentRef distinguishes an absent parent_id from an explicit null.
type parentRef struct {
	Set   bool
	Value *string
}

func (p *parentRef) UnmarshalJSON(b []byte) error {
	p.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &p.Value)
}

type createReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Owner       string  `json:"owner"`
	ParentID    *string `json:"parent_id"`
}

type updateReq struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Owner       *string   `json:"owner"`
	Position    *int      `json:"position"`
	ParentID    parentRef `json:"parent_id"`
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "processes": items})
}

func (h *Handler) tree(c *gin.Context) {
	nodes, err := h.svc.Tree(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tree": nodes})
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}

	p, err := h.svc.Create(c.Request.Context(), projects.Current(c).ID, CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		ParentID:    req.ParentID,
	})
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "process": p})
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	in := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Position:    req.Position,
		MoveParent:  req.ParentID.Set,
		ParentID:    req.ParentID.Value,
	}
	if in.ParentID != nil && *in.ParentID == "" {
		in.ParentID = nil
	}

	p, err := h.svc.Update(c.Request.Context(), projects.Current(c).ID, c.Param("process_id"), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "process": p})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), projects.Current(c).ID, c.Param("process_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
