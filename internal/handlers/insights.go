package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/logging"
)

// HandleInsights returns the last insights result, loading it on first use
// or when ?refresh=1 is given. Concurrent loads are collapsed into one.
func (h *Handlers) HandleInsights(c fiber.Ctx) error {
	refresh := c.Query("refresh") == "1" || c.Query("refresh") == "true"

	h.mu.RLock()
	cached := h.last
	h.mu.RUnlock()

	if cached == nil || refresh {
		// Loads outlive the request so a disconnecting client does not
		// waste the provider calls already made.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Context()), h.loadTTL)
		value, _, _ := h.loads.Do("insights", func() (any, error) {
			result := h.insights.Load(ctx)
			h.mu.Lock()
			h.last = &result
			h.mu.Unlock()
			return &result, nil
		})
		cancel()
		cached = value.(*insights.Result)
		logging.L().Debug("insights reloaded", "refresh", refresh, "visitor_found", cached.CurrentVisitor != nil)
	}

	c.Set("Cache-Control", "no-store")
	return c.JSON(cached)
}
