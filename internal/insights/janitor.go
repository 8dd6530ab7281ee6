package insights

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seuros/folio/internal/logging"
)

// DefaultJanitorInterval is how often expired geo cache entries are pruned.
const DefaultJanitorInterval = 24 * time.Hour

// Janitor periodically prunes the geo cache.
type Janitor struct {
	cache    *GeoCache
	clock    clockwork.Clock
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJanitor(cache *GeoCache, clock clockwork.Clock, interval time.Duration) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		cache:    cache,
		clock:    clock,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start prunes immediately and then on every interval until Stop.
func (j *Janitor) Start(ctx context.Context) {
	logging.L().Info("starting geo cache janitor", "interval", j.interval)
	j.wg.Add(1)
	go j.run(ctx)
}

// Stop waits for the running prune to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	j.wg.Wait()
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	j.prune(ctx)
	for {
		select {
		case <-ticker.Chan():
			j.prune(ctx)
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) prune(ctx context.Context) {
	removed, err := j.cache.Prune(ctx)
	if err != nil {
		logging.L().Warn("failed to prune geo cache", "error", err)
		return
	}
	if removed > 0 {
		logging.L().Info("pruned geo cache", "removed", removed)
	}
}
