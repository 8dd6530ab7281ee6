// Package storage is the local key-value persistence used for view counters,
// session flags, visitor history and the geo cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Persisted keys. These strings are shared with earlier builds of the site and
// must not change.
const (
	KeyTheme            = "portfolio-theme"
	KeyViewHitSession   = "portfolio-view-hit-v1"
	KeyLocalHitSession  = "portfolio-local-view-hit-v1"
	KeyLocalViewCount   = "portfolio-local-view-count-v1"
	KeyVisitorLogged    = "portfolio-visitor-logged-v1"
	KeyVisitorHistory   = "portfolio-visitor-history-v1"
	KeyVisitorGeoCache  = "portfolio-visitor-geo-cache-v1"
	sessionFlagSetValue = "1"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Open returns the persistent store selected by driver.
func Open(ctx context.Context, driver, dataDir string) (Store, func() error, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		s, err := OpenSQLite(ctx, dataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return NewMemory(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// FlagSet reports whether a session flag has been set.
func FlagSet(ctx context.Context, s Store, key string) bool {
	value, ok, err := s.Get(ctx, key)
	return err == nil && ok && value == sessionFlagSetValue
}

// SetFlag marks a session flag.
func SetFlag(ctx context.Context, s Store, key string) error {
	return s.Set(ctx, key, sessionFlagSetValue)
}

// Memory is an in-process Store. A Memory store lives exactly as long as the
// process, which makes it the session store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
