package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/seuros/folio/internal/handlers"
	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/logging"
	"github.com/seuros/folio/internal/presence"
	"github.com/seuros/folio/internal/realtime"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Folio server",
	Long: `Start the Folio server.

The serve command keeps presence in sync with the relay and exposes it, together
with visitor insights, over HTTP and WebSocket.

Environment variables:
  FOLIO_SUBJECT_ID  Presence subject id (DISCORD_USER_ID is also read)
  PORT              Server port (default: 3000)
  DATA_DIR          Store and GeoIP directory (default: ./data)
  FOLIO_STORE       sqlite or memory (default: sqlite)
  GEOIP_DOWNLOAD    Download GeoLite2 when missing (default: false)

Example:
  FOLIO_SUBJECT_ID=1043123309983846482 folio serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	janitor := insights.NewJanitor(svc.geoCache, nil, insights.DefaultJanitorInterval)
	janitor.Start(ctx)
	defer janitor.Stop()

	syncer := newSyncer(cfg)
	syncer.Start(ctx)
	defer syncer.Stop()

	hub := realtime.NewHub()
	defer hub.Close()
	updates, unsubscribe := syncer.Subscribe()
	defer unsubscribe()
	go hub.Forward(ctx, updates)

	h := handlers.New(syncer, svc.insights, svc.store, Version,
		handlers.WithDecorations(presence.NewDecorationLoader(svc.client)))
	app := newApp(h, hub.Handler())

	errCh := make(chan error, 1)
	go func() {
		logging.L().Info("folio starting", "port", cfg.Port, "subject", cfg.SubjectID, "version", Version)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.L().Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newApp builds the fiber application with middleware and routes.
func newApp(h *handlers.Handlers, live fiber.Handler) *fiber.App {
	app := fiber.New(createFiberConfig("Folio"))

	app.Use(recoverer.New())
	app.Use(fiberzap.New(fiberzap.Config{Logger: logging.Zap()}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
	}))

	// Add version header to all responses
	app.Use(func(c fiber.Ctx) error {
		c.Set("X-Folio-Version", Version)
		return c.Next()
	})

	handlers.Register(app, h, live)
	return app
}
