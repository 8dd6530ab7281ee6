package insights

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/seuros/folio/internal/httpx"
	"github.com/seuros/folio/internal/logging"
	"github.com/seuros/folio/internal/storage"
)

// ViewSource says where a view count came from.
type ViewSource string

const (
	SourceGlobal ViewSource = "global"
	SourceLocal  ViewSource = "local"
)

// ViewCount is an approximate page view total.
type ViewCount struct {
	Value  int64      `json:"value"`
	Source ViewSource `json:"source"`
}

// ViewCounter reads a shared remote counter and falls back to a local one.
// The remote counter is incremented once per session; later reads only peek.
type ViewCounter struct {
	client    *http.Client
	baseURL   string
	namespace string
	key       string
	local     storage.Store
	session   storage.Store
}

func NewViewCounter(client *http.Client, baseURL, namespace, key string, local, session storage.Store) *ViewCounter {
	return &ViewCounter{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		namespace: namespace,
		key:       key,
		local:     local,
		session:   session,
	}
}

// Get returns the current count. It never fails; remote errors fall back to
// the local counter.
func (c *ViewCounter) Get(ctx context.Context) ViewCount {
	counted := storage.FlagSet(ctx, c.session, storage.KeyViewHitSession)
	action := "hit"
	if counted {
		action = "get"
	}
	target := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, action, url.PathEscape(c.namespace), url.PathEscape(c.key))

	var payload struct {
		Value *float64 `json:"value"`
	}
	err := httpx.GetJSON(ctx, c.client, target, &payload)
	if err == nil {
		if !counted {
			if err := storage.SetFlag(ctx, c.session, storage.KeyViewHitSession); err != nil {
				logging.L().Warn("failed to mark view as counted", "error", err)
			}
		}
		if payload.Value != nil {
			return ViewCount{Value: safeCount(*payload.Value), Source: SourceGlobal}
		}
	} else {
		logging.L().Debug("view counter unavailable", "error", err)
	}

	return ViewCount{Value: c.bumpLocal(ctx), Source: SourceLocal}
}

// StoredLocal returns the persisted local count without changing it.
func (c *ViewCounter) StoredLocal(ctx context.Context) int64 {
	raw, ok, err := c.local.Get(ctx, storage.KeyLocalViewCount)
	if err != nil || !ok {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return safeCount(value)
}

func (c *ViewCounter) bumpLocal(ctx context.Context) int64 {
	current := c.StoredLocal(ctx)
	if storage.FlagSet(ctx, c.session, storage.KeyLocalHitSession) {
		return max(current, 1)
	}

	next := current + 1
	if err := c.local.Set(ctx, storage.KeyLocalViewCount, strconv.FormatInt(next, 10)); err != nil {
		logging.L().Warn("failed to save local view count", "error", err)
		return max(current, 1)
	}
	if err := storage.SetFlag(ctx, c.session, storage.KeyLocalHitSession); err != nil {
		logging.L().Warn("failed to mark local view as counted", "error", err)
	}
	return next
}

func safeCount(value float64) int64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return int64(math.Floor(value))
}
