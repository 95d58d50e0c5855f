package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpapi "github.com/ba-assist/ba-assist-backend/internal/api/http"
	"github.com/ba-assist/ba-assist-backend/internal/projects"
	"github.com/ba-assist/ba-assist-backend/internal/roadmap/domain"
	"github.com/ba-assist/ba-assist-backend/internal/roadmap/service"
)

type Handler struct {
	svc *service.RoadmapService
}

func New(svc *service.RoadmapService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(scoped *gin.RouterGroup) {
	scoped.POST("/roadmaps", h.create)
	scoped.GET("/roadmaps", h.list)
	scoped.POST("/roadmaps/:roadmap_id/activate", h.activate)

	scoped.GET("/roadmap", h.active)
	scoped.POST("/roadmap/phases/:phase_id/tasks", h.addTask)
	scoped.PATCH("/roadmap/tasks/:task_id", h.updateTask)
	scoped.DELETE("/roadmap/tasks/:task_id", h.deleteTask)
}

type phaseReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// createReq instantiates a framework when framework_id is set, otherwise it
// creates a manual roadmap from name and phases.
type createReq struct {
	FrameworkID string     `json:"framework_id"`
	Name        string     `json:"name"`
	Phases      []phaseReq `json:"phases"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	projectID := projects.Current(c).ID
	var (
		rm  *domain.Roadmap
		err error
	)
	if req.FrameworkID != "" || req.Name == "" {
		rm, err = h.svc.Instantiate(c.Request.Context(), projectID, req.FrameworkID)
	} else {
		bp := domain.Blueprint{Name: req.Name, Source: domain.SourceManual}
		for _, p := range req.Phases {
			bp.Phases = append(bp.Phases, domain.BlueprintPhase{Name: p.Name, Description: p.Description})
		}
		rm, err = h.svc.Create(c.Request.Context(), projectID, bp)
	}
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "roadmap": rm})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "roadmaps": items})
}

func (h *Handler) active(c *gin.Context) {
	rm, err := h.svc.Active(c.Request.Context(), projects.Current(c).ID)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "roadmap": rm})
}

func (h *Handler) activate(c *gin.Context) {
	rm, err := h.svc.Activate(c.Request.Context(), projects.Current(c).ID, c.Param("roadmap_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "roadmap": rm})
}

type addTaskReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) addTask(c *gin.Context) {
	var req addTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	res, err := h.svc.AddTask(c.Request.Context(), projects.Current(c).ID, c.Param("phase_id"), req.Title, req.Description)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "result": res})
}

type updateTaskReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateTask(c *gin.Context) {
	var req updateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid body")
		return
	}

	res, err := h.svc.UpdateTaskStatus(c.Request.Context(), projects.Current(c).ID, c.Param("task_id"), req.Status)
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

func (h *Handler) deleteTask(c *gin.Context) {
	res, err := h.svc.DeleteTask(c.Request.Context(), projects.Current(c).ID, c.Param("task_id"))
	if err != nil {
		httpapi.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}
