package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/folio/internal/presence"
)

// PresenceResponse is returned by GET /api/presence.
type PresenceResponse struct {
	Snapshot presence.Snapshot `json:"snapshot"`
	View     presence.View     `json:"view"`
}

// SignalPayload is the body of POST /api/presence/signal.
type SignalPayload struct {
	Type string `json:"type"`
}

// HandlePresence returns the current presence snapshot.
func (h *Handlers) HandlePresence(c fiber.Ctx) error {
	snap := h.presence.Snapshot()

	if h.decorations != nil && snap.AvatarDecorationURL != "" {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		resolved := h.decorations.Resolve(ctx, snap.AvatarDecorationURL, snap.AvatarDecorationFallbackURL)
		cancel()
		snap.AvatarDecorationURL = resolved
		snap.AvatarDecorationFallbackURL = ""
	}

	c.Set("Cache-Control", "no-store")
	return c.JSON(PresenceResponse{Snapshot: snap, View: presence.Describe(snap)})
}

// HandlePresenceSignal forwards browser lifecycle signals to the syncer.
func (h *Handlers) HandlePresenceSignal(c fiber.Ctx) error {
	var payload SignalPayload
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON payload",
		})
	}

	switch payload.Type {
	case "focus":
		h.presence.Focus()
	case "visible":
		h.presence.VisibilityChanged(true)
	case "hidden":
		h.presence.VisibilityChanged(false)
	case "online":
		h.presence.NetworkChanged(true)
	case "offline":
		h.presence.NetworkChanged(false)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown signal type",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}
