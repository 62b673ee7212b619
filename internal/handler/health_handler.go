// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projector-service/internal/config"
	"projector-service/internal/model"
	"projector-service/internal/service"
	"projector-service/internal/utils"
	"projector-service/pkg/driver"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	projectorService *service.ProjectorService
	config           *config.Config
	startedAt        time.Time
	logger           *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(projectorService *service.ProjectorService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		projectorService: projectorService,
		config:           config,
		startedAt:        time.Now(),
		logger:           utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health from cached projector state only.
// A projector in Abnormal Standby degrades the service.
// @Summary Health check
// @Description Get overall service health including per projector session state
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy or degraded"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	for _, info := range h.projectorService.ListProjectors() {
		status, err := h.projectorService.GetStatus(info.ID)
		if err != nil {
			continue
		}

		check := projectorCheck(status)
		if check.Status == "unhealthy" {
			health.Status = "degraded"
		}
		health.Checks["projector:"+info.ID] = check
	}

	c.JSON(http.StatusOK, health)
}

func projectorCheck(status *model.ProjectorStatus) CheckResult {
	check := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"host":          status.Info.Host,
			"session_state": status.Client.SessionState,
			"busy":          status.Client.Busy,
			"power":         status.PowerLabel,
			"errors":        status.Client.Stats.ErrorCount,
			"reconnects":    status.Client.Stats.Reconnects,
		},
	}

	switch status.Power {
	case "":
		check.Status = "unknown"
		check.Message = "Power state not read yet"
	case driver.PowerAbnormalStandby:
		check.Status = "unhealthy"
		check.Message = "Projector reports abnormal standby"
	}
	return check
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Description Ready once at least one projector is configured
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if len(h.projectorService.ListProjectors()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no projectors configured",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
