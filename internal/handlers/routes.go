package handlers

import (
	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
)

// Register mounts every endpoint on router. live serves the presence
// websocket stream and may be nil.
func Register(router fiber.Router, h *Handlers, live fiber.Handler) {
	router.Get("/health", h.HandleHealth)
	router.Get("/up", h.HandleUp)
	router.Get("/api/version", h.HandleVersion)

	router.Get("/api/presence", h.HandlePresence)
	router.Post("/api/presence/signal", h.HandlePresenceSignal)
	if live != nil {
		router.Get("/api/presence/live", requireUpgrade, live)
	}

	router.Get("/api/insights", h.HandleInsights)
	router.Get("/api/theme", h.HandleGetTheme)
	router.Put("/api/theme", h.HandlePutTheme)
}

func requireUpgrade(c fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
