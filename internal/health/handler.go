package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"exam-service/common/metrics"

	"github.com/gin-gonic/gin"
)

// Checker probes one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks  map[string]Checker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(checks map[string]Checker, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		checks:  checks,
		metrics: m,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready runs every dependency check; any failure makes the service unready.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps, ok := h.CheckAll(ctx)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Dependencies: deps})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready", Dependencies: deps})
}

// CheckAll probes every dependency and records the outcome in the health metrics.
func (h *Handler) CheckAll(ctx context.Context) (map[string]string, bool) {
	deps := make(map[string]string, len(h.checks))
	ok := true
	for name, check := range h.checks {
		start := time.Now()
		err := check.HealthCheck(ctx)
		if h.metrics != nil {
			h.metrics.Health.RecordDependencyCheck(ctx, name, time.Since(start), err)
		}
		if err != nil {
			h.logger.WarnContext(ctx, "dependency check failed", "dependency", name, "error", err)
			deps[name] = "down"
			ok = false
			continue
		}
		deps[name] = "up"
	}
	return deps, ok
}

// Names lists the registered dependencies.
func (h *Handler) Names() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	return names
}

// Run repeats CheckAll every interval until ctx is done.
func (h *Handler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		h.CheckAll(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
