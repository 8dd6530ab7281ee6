package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/logging"
)

// ThemePayload is the body of PUT /api/theme.
type ThemePayload struct {
	Theme string `json:"theme"`
}

func (h *Handlers) HandleGetTheme(c fiber.Ctx) error {
	return c.JSON(ThemePayload{Theme: string(insights.LoadTheme(c.Context(), h.store))})
}

func (h *Handlers) HandlePutTheme(c fiber.Ctx) error {
	var payload ThemePayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON payload",
		})
	}

	theme, err := insights.ParseTheme(payload.Theme)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Theme must be light or dark",
		})
	}

	if err := insights.SaveTheme(c.Context(), h.store, theme); err != nil {
		logging.L().Error("failed to save theme", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save theme",
		})
	}
	return c.JSON(ThemePayload{Theme: string(theme)})
}
