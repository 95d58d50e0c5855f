package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Features  map[string]bool   `json:"features,omitempty"`
}

// Check probes one dependency. A nil error means "up".
type Check func(ctx context.Context) error

type namedCheck struct {
	name     string
	critical bool
	fn       Check
}

type HealthHandler struct {
	serviceName string
	version     string
	checks      []namedCheck
	features    map[string]bool
	timeout     time.Duration
}

func NewHealthHandler(serviceName, version string) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		features:    map[string]bool{},
		timeout:     time.Second,
	}
}

// WithCheck registers a readiness probe. A failing critical probe makes the
// readiness endpoint answer 503.
func (h *HealthHandler) WithCheck(name string, critical bool, fn Check) *HealthHandler {
	h.checks = append(h.checks, namedCheck{name: name, critical: critical, fn: fn})
	return h
}

// WithFeature reports whether an optional collaborator is configured.
func (h *HealthHandler) WithFeature(name string, enabled bool) *HealthHandler {
	h.features[name] = enabled
	return h
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(h.checks))

	sorted := append([]namedCheck(nil), h.checks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	for _, chk := range sorted {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := chk.fn(ctx)
		cancel()

		if err != nil {
			checks[chk.name] = "down"
			if chk.critical {
				status = "unavailable"
				code = http.StatusServiceUnavailable
			} else if status == "ready" {
				status = "degraded"
			}
			continue
		}
		checks[chk.name] = "up"
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		Checks:    checks,
		Features:  h.features,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
	r.GET("/health/ready", h.Ready)
}
