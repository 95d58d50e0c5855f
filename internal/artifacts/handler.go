package artifacts

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

// Register mounts the catalog routes on rg and the project routes on scoped.
func (h *Handler) Register(rg *gin.RouterGroup, scoped *gin.RouterGroup) {
	rg.GET("/artifacts", h.listCatalog)
	rg.GET("/artifacts/knowledge-areas", h.knowledgeAreas)
	rg.GET("/artifacts/:artifact_id", h.getCatalog)

	g := scoped.Group("/artifacts")
	g.GET("", h.list)
	g.POST("", h.attach)
	g.PATCH("/:artifact_id", h.update)
	g.DELETE("/:artifact_id", h.delete)
	g.POST("/:artifact_id/tasks/:task_id", h.link)
	g.DELETE("/:artifact_id/tasks/:task_id", h.unlink)
}

func (h *Handler) listCatalog(c *gin.Context) {
	items, err := h.svc.ListCatalog(c.Request.Context(), c.Query("knowledge_area"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "artifacts": items})
}

func (h *Handler) knowledgeAreas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "knowledge_areas": h.svc.KnowledgeAreas()})
}

func (h *Handler) getCatalog(c *gin.Context) {
	item, err := h.svc.GetCatalog(c.Request.Context(), c.Param("artifact_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "artifact": item})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "artifacts": items})
}

type attachReq struct {
	CatalogID string `json:"catalog_id"`
	Name      string `json:"name"`
}

func (h *Handler) attach(c *gin.Context) {
	var req attachReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	a, err := h.svc.Attach(c.Request.Context(), projects.Current(c).ID, req.CatalogID, req.Name)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "artifact": a})
}

// fileRef distinguishes an absent file_id from an explicit null.
type fileRef struct {
	Set   bool
	Value *string
}

func (f *fileRef) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

type updateReq struct {
	Name    *string `json:"name"`
	Status  *string `json:"status"`
	Content *string `json:"content"`
	FileID  fileRef `json:"file_id"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	in := UpdateInput{Name: req.Name, Status: req.Status, Content: req.Content}
	if req.FileID.Set {
		if req.FileID.Value == nil || *req.FileID.Value == "" {
			in.ClearFile = true
		} else {
			in.FileID = req.FileID.Value
		}
	}

	a, err := h.svc.Update(c.Request.Context(), projects.Current(c).ID, c.Param("artifact_id"), in)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "artifact": a})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), projects.Current(c).ID, c.Param("artifact_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) link(c *gin.Context) {
	if err := h.svc.LinkTask(c.Request.Context(), projects.Current(c).ID, c.Param("artifact_id"), c.Param("task_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) unlink(c *gin.Context) {
	if err := h.svc.UnlinkTask(c.Request.Context(), projects.Current(c).ID, c.Param("artifact_id"), c.Param("task_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
