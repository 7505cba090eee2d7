package handlers

import "github.com/gofiber/fiber/v3"

// HealthHandler serves GET /api/health, spec.md section 6's liveness
// probe.
type HealthHandler struct{}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// RegisterRoutes mounts the liveness route.
func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
