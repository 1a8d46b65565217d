package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// readinessTimeout bounds the store ping of /ready
const readinessTimeout = 2 * time.Second

// HealthChecker reports whether the backing store answers
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// JobRunner exposes the maintenance scheduler
type JobRunner interface {
	States() []scheduler.JobState
	RunNow(ctx context.Context, name string) error
}

// SystemHandler serves health, readiness and maintenance job endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	store     HealthChecker
	jobs      JobRunner
}

// NewSystemHandler creates a SystemHandler. jobs may be nil when the
// scheduler is disabled.
func NewSystemHandler(name, version string, store HealthChecker, jobs JobRunner) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		store:     store,
		jobs:      jobs,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// HealthResponse is the body of /health and /ready
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// RegisterProbes mounts /health and /ready outside the versioned API
func (h *SystemHandler) RegisterProbes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
	engine.GET("/ready", h.Ready)
}

// RegisterRoutes implements router.RouteRegistrar
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	system.GET("/info", h.GetSystemInfo)
	system.GET("/jobs", h.ListJobs)
	system.POST("/jobs/:name/run", h.RunJob)
}

// Health is the liveness probe
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready answers 503 while the store is unreachable
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()
	if err := h.store.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ListJobs returns the state of every maintenance job
func (h *SystemHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.List(c, []scheduler.JobState{}, 0, 0)
		return
	}
	states := h.jobs.States()
	h.List(c, states, len(states), 0)
}

// RunJob runs a maintenance job now and waits for it
func (h *SystemHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if h.jobs == nil {
		h.Error(c, http.StatusNotFound, "NOT_FOUND", "Scheduler is disabled")
		return
	}

	err := h.jobs.RunNow(c.Request.Context(), name)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.Error(c, http.StatusNotFound, "NOT_FOUND", "Job "+name+" is not registered")
		return
	case errors.Is(err, scheduler.ErrJobInProgress):
		c.Header("Retry-After", "5")
		h.Error(c, http.StatusConflict, "JOB_IN_PROGRESS", "Job "+name+" is already running")
		return
	default:
		h.HandleError(c, err)
		return
	}

	for _, st := range h.jobs.States() {
		if st.Name == name {
			h.Success(c, st)
			return
		}
	}
	h.Success(c, gin.H{"name": name})
}
