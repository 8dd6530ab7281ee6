package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/seuros/folio/internal/config"
	"github.com/seuros/folio/internal/geoip"
	"github.com/seuros/folio/internal/httpx"
	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/logging"
	"github.com/seuros/folio/internal/presence"
	"github.com/seuros/folio/internal/storage"
)

// services bundles the long-lived dependencies built from configuration.
type services struct {
	cfg      *config.Config
	client   *http.Client
	store    storage.Store
	session  *storage.Memory
	geo      *geoip.Reader
	geoCache *insights.GeoCache
	insights *insights.Service

	closeStore func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(flagPort, flagDataDir, flagSubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openServices(ctx context.Context, cfg *config.Config) (*services, error) {
	store, closeStore, err := storage.Open(ctx, cfg.StoreDriver, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("store initialization failed: %w", err)
	}

	svc := &services{
		cfg:        cfg,
		client:     httpx.NewClient(cfg.RequestTimeout),
		store:      store,
		session:    storage.NewMemory(),
		closeStore: closeStore,
	}

	svc.geo = geoip.Open(ctx, cfg.DataDir, geoip.Options{Download: cfg.GeoIPDownload})
	svc.insights = newInsightsService(svc)
	return svc, nil
}

func newInsightsService(svc *services) *insights.Service {
	now := time.Now
	svc.geoCache = insights.NewGeoCache(svc.store, now)
	locator := insights.NewLocator(svc.client,
		insights.WithGeoCache(svc.geoCache),
		insights.WithOfflineLookup(svc.geo),
		insights.WithNow(now),
	)
	counter := insights.NewViewCounter(svc.client,
		svc.cfg.CounterBaseURL, svc.cfg.CounterNamespace, svc.cfg.CounterKey,
		svc.store, svc.session)
	return insights.NewService(counter, locator, insights.NewHistory(svc.store), svc.session)
}

func newSyncer(cfg *config.Config) *presence.Syncer {
	return presence.NewSyncer(presence.Config{
		SubjectID:      cfg.SubjectID,
		SocketURL:      cfg.PresenceSocketURL,
		APIURL:         cfg.PresenceAPIURL,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		RetryDelay:     cfg.SocketRetryDelay,
	})
}

func (s *services) Close() {
	if err := s.geo.Close(); err != nil {
		logging.L().Warn("error closing GeoIP", "error", err)
	}
	if err := s.closeStore(); err != nil {
		logging.L().Warn("error closing store", "error", err)
	}
}
