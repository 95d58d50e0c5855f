package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/auth"
	"github.com/ba-assist/ba-assist-backend/internal/files/service"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
)

// multipartOverhead leaves room for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

type Handler struct {
	svc *service.FileService
}

func New(svc *service.FileService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the file routes on a project-scoped group.
func (h *Handler) Register(scoped *gin.RouterGroup) {
	g := scoped.Group("/files")
	g.POST("", h.upload)
	g.GET("", h.list)
	g.GET("/:file_id", h.get)
	g.GET("/:file_id/url", h.url)
	g.POST("/:file_id/process", h.process)
	g.POST("/:file_id/copy", h.copy)
	g.DELETE("/:file_id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.svc.MaxUpload()+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpapi.BadRequest(c, "file exceeds the upload limit")
			return
		}
		httpapi.BadRequest(c, "multipart field 'file' is required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		httpapi.BadRequest(c, "could not read uploaded file")
		return
	}
	defer src.Close()

	f, err := h.svc.Upload(c.Request.Context(), projects.Current(c), fh.Filename, src, fh.Size)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "file": f})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), projects.Current(c))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "files": items})
}

func (h *Handler) get(c *gin.Context) {
	f, err := h.svc.Get(c.Request.Context(), projects.Current(c), c.Param("file_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "file": f})
}

func (h *Handler) url(c *gin.Context) {
	u, expires, err := h.svc.URL(c.Request.Context(), projects.Current(c), c.Param("file_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": u, "expires_at": expires})
}

func (h *Handler) process(c *gin.Context) {
	f, err := h.svc.Process(c.Request.Context(), projects.Current(c), c.Param("file_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "file": f})
}

type copyReq struct {
	TargetProjectID string `json:"target_project_id"`
}

func (h *Handler) copy(c *gin.Context) {
	var req copyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	f, err := h.svc.Copy(c.Request.Context(), auth.UserID(c), projects.Current(c), c.Param("file_id"), req.TargetProjectID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "file": f})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), projects.Current(c), c.Param("file_id")); err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
