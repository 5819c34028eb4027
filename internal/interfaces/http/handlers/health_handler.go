package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/quotagate/internal/domain/repository"
	"github.com/turtacn/quotagate/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]repository.HealthChecker
	log    logger.Logger
}

// NewHealthHandler creates a new HealthHandler. Each named checker is probed by the readiness check.
func NewHealthHandler(checks map[string]repository.HealthChecker, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		log:    log.WithComponent("health"),
	}
}

// LivenessCheck godoc
// @Summary      Liveness Check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck godoc
// @Summary      Readiness Check
// @Description  Checks that the counter store and other dependencies answer.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks, err := h.performChecks(c.Request.Context())

	status, httpStatus := "ready", http.StatusOK
	if err != nil {
		status, httpStatus = "unavailable", http.StatusServiceUnavailable
		h.log.Warn(c.Request.Context(), "readiness check failed", logger.Err(err))
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) performChecks(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		g      errgroup.Group
		checks = make(map[string]string, len(h.checks))
	)
	for name, checker := range h.checks {
		name, checker := name, checker
		g.Go(func() error {
			err := checker.Ping(ctx)
			status := "ok"
			if err != nil {
				status = "error"
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
			return err
		})
	}
	return checks, g.Wait()
}

//Personal.AI order the ending
