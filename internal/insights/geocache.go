package insights

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/seuros/folio/internal/storage"
)

const (
	GeoCacheTTL     = 7 * 24 * time.Hour
	GeoCacheEntries = 60
)

type geoCacheEntry struct {
	City      string `json:"city"`
	Region    string `json:"region"`
	Country   string `json:"country"`
	Timezone  string `json:"timezone"`
	Provider  string `json:"provider"`
	UpdatedAt int64  `json:"updatedAt"`
}

// GeoCache remembers per-IP geolocation results in the store.
type GeoCache struct {
	store storage.Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewGeoCache(store storage.Store, now func() time.Time) *GeoCache {
	if now == nil {
		now = time.Now
	}
	return &GeoCache{store: store, now: now}
}

// Get returns the cached record for ip, or nil. Expired entries are removed.
func (c *GeoCache) Get(ctx context.Context, ip string) (*VisitorRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := entries[ip]
	if !ok {
		return nil, nil
	}

	now := c.now()
	if entry.UpdatedAt <= 0 || now.Sub(time.UnixMilli(entry.UpdatedAt)) > GeoCacheTTL {
		delete(entries, ip)
		return nil, c.save(ctx, entries)
	}

	return NewRecord(VisitorRecord{
		IP:        ip,
		City:      entry.City,
		Region:    entry.Region,
		Country:   entry.Country,
		Timezone:  entry.Timezone,
		Provider:  entry.Provider,
		VisitedAt: now.UTC(),
	}), nil
}

// Put stores r and keeps only the most recently updated entries.
func (c *GeoCache) Put(ctx context.Context, r *VisitorRecord) error {
	if r == nil || r.IP == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return err
	}
	entries[r.IP] = geoCacheEntry{
		City:      r.City,
		Region:    r.Region,
		Country:   r.Country,
		Timezone:  r.Timezone,
		Provider:  r.Provider,
		UpdatedAt: c.now().UnixMilli(),
	}

	if len(entries) > GeoCacheEntries {
		ips := make([]string, 0, len(entries))
		for ip := range entries {
			ips = append(ips, ip)
		}
		// the entry being written always survives; equal timestamps order by IP
		sort.Slice(ips, func(i, j int) bool {
			a, b := ips[i], ips[j]
			if (a == r.IP) != (b == r.IP) {
				return a == r.IP
			}
			if ta, tb := entries[a].UpdatedAt, entries[b].UpdatedAt; ta != tb {
				return ta > tb
			}
			return a < b
		})
		for _, ip := range ips[GeoCacheEntries:] {
			delete(entries, ip)
		}
	}
	return c.save(ctx, entries)
}

// Len reports the number of stored entries, expired ones included.
func (c *GeoCache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load(ctx)
	return len(entries), err
}

func (c *GeoCache) load(ctx context.Context) (map[string]geoCacheEntry, error) {
	raw, ok, err := c.store.Get(ctx, storage.KeyVisitorGeoCache)
	if err != nil {
		return nil, fmt.Errorf("load geo cache: %w", err)
	}
	entries := make(map[string]geoCacheEntry)
	if !ok || raw == "" {
		return entries, nil
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// unreadable caches start over
		return make(map[string]geoCacheEntry), nil
	}
	return entries, nil
}

func (c *GeoCache) save(ctx context.Context, entries map[string]geoCacheEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode geo cache: %w", err)
	}
	if err := c.store.Set(ctx, storage.KeyVisitorGeoCache, string(raw)); err != nil {
		return fmt.Errorf("save geo cache: %w", err)
	}
	return nil
}

// Prune drops expired entries and reports how many were removed.
func (c *GeoCache) Prune(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	removed := 0
	for ip, entry := range entries {
		if entry.UpdatedAt <= 0 || now.Sub(time.UnixMilli(entry.UpdatedAt)) > GeoCacheTTL {
			delete(entries, ip)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.save(ctx, entries)
}
