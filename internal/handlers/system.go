package handlers

import (
	"github.com/gofiber/fiber/v3"
)

func (h *Handlers) HandleHealth(c fiber.Ctx) error {
	snap := h.presence.Snapshot()
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"service":      "folio",
		"availability": snap.Availability,
	})
}

// HandleUp is the container health check.
func (h *Handlers) HandleUp(c fiber.Ctx) error {
	if _, _, err := h.store.Get(c.Context(), "__up__"); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("store unavailable")
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) HandleVersion(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": h.version,
	})
}
