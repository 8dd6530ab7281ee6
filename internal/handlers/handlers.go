// Package handlers is the HTTP surface of the presence and insights services.
package handlers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seuros/folio/internal/insights"
	"github.com/seuros/folio/internal/presence"
	"github.com/seuros/folio/internal/storage"
)

// PresenceSource is the live presence state.
type PresenceSource interface {
	Snapshot() presence.Snapshot
	Focus()
	VisibilityChanged(visible bool)
	NetworkChanged(online bool)
}

// InsightsLoader produces visitor insights.
type InsightsLoader interface {
	Load(ctx context.Context) insights.Result
}

// DecorationResolver picks a loadable avatar decoration URL.
type DecorationResolver interface {
	Resolve(ctx context.Context, primary, fallback string) string
}

// Handlers holds the dependencies of the HTTP endpoints.
type Handlers struct {
	presence    PresenceSource
	insights    InsightsLoader
	store       storage.Store
	decorations DecorationResolver
	version     string

	loads   singleflight.Group
	mu      sync.RWMutex
	last    *insights.Result
	loadTTL time.Duration
}

// Option customises Handlers.
type Option func(*Handlers)

func WithDecorations(r DecorationResolver) Option {
	return func(h *Handlers) { h.decorations = r }
}

func New(source PresenceSource, loader InsightsLoader, store storage.Store, version string, opts ...Option) *Handlers {
	h := &Handlers{
		presence: source,
		insights: loader,
		store:    store,
		version:  version,
		loadTTL:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
