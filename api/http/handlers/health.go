package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/artem13815/accounts/api/http/presenter"
	"github.com/artem13815/accounts/pkg/health"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	svc     health.ReadinessUseCase
	timeout time.Duration
}

func NewHealthHandler(svc health.ReadinessUseCase, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &HealthHandler{svc: svc, timeout: timeout}
}

// Health: basic liveness check.
// @Summary Liveness probe
// @Tags    health
// @Produce json
// @Success 200 {object} presenter.SuccessResponse
// @Router  /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return presenter.JSON(c, http.StatusOK, fiber.Map{"status": "ok"})
}

// Ready: readiness check against the credential store.
// @Summary Readiness probe
// @Tags    health
// @Produce json
// @Success 200 {object} presenter.SuccessResponse
// @Failure 503 {object} presenter.ErrorResponse
// @Router  /ready [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()
	if err := h.svc.Ready(ctx); err != nil {
		return presenter.Error(c, http.StatusServiceUnavailable, "not ready: "+err.Error())
	}
	return presenter.JSON(c, http.StatusOK, fiber.Map{"status": "ready"})
}
