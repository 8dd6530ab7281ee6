package insights

import (
	"context"
	"errors"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/seuros/folio/internal/httpx"
	"github.com/seuros/folio/internal/logging"
)

// OfflineLookup resolves an IP without the network, for example from a
// GeoLite2 database.
type OfflineLookup interface {
	LookupVisitor(ip string) (*VisitorRecord, error)
}

// endpoint wraps one upstream host with its own breaker and limiter so a
// failing provider never affects the others.
type endpoint struct {
	name    string
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
}

func newEndpoint(name string) *endpoint {
	return &endpoint{
		name:    name,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// A cancelled caller says nothing about the provider.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.L().Info("geolocation provider breaker changed state",
					"provider", name,
					"from", from.String(),
					"to", to.String())
			},
		}),
	}
}

// LocatorOption customises a Locator.
type LocatorOption func(*Locator)

func WithProviders(providers []Provider, ipEchoURL string) LocatorOption {
	return func(l *Locator) {
		l.providers = providers
		l.ipEchoURL = ipEchoURL
	}
}

func WithGeoCache(c *GeoCache) LocatorOption {
	return func(l *Locator) { l.cache = c }
}

func WithOfflineLookup(o OfflineLookup) LocatorOption {
	return func(l *Locator) { l.offline = o }
}

func WithNow(now func() time.Time) LocatorOption {
	return func(l *Locator) { l.now = now }
}

// Locator resolves the current visitor through the provider chain.
type Locator struct {
	client    *http.Client
	providers []Provider
	ipEchoURL string
	cache     *GeoCache
	offline   OfflineLookup
	now       func() time.Time
	endpoints map[string]*endpoint
}

func NewLocator(client *http.Client, opts ...LocatorOption) *Locator {
	l := &Locator{
		client:    client,
		providers: DefaultProviders,
		ipEchoURL: DefaultIPEchoURL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = httpx.NewClient(5 * time.Second)
	}

	l.endpoints = make(map[string]*endpoint, len(l.providers)+1)
	for _, p := range l.providers {
		l.endpoints[p.Name] = newEndpoint(p.Name)
	}
	l.endpoints["ip-echo"] = newEndpoint("ip-echo")
	return l
}

// resolution tracks one CurrentVisitor call so an IP is looked up once.
type resolution struct {
	visitedAt time.Time
	lookedUp  map[string]*VisitorRecord
}

// CurrentVisitor returns the best record for the caller's IP, or nil when
// every provider failed.
func (l *Locator) CurrentVisitor(ctx context.Context) *VisitorRecord {
	res := &resolution{visitedAt: l.now().UTC(), lookedUp: make(map[string]*VisitorRecord)}

	current := l.firstKnown(ctx, res.visitedAt, func(p Provider) string { return p.CurrentURL })

	var visitor *VisitorRecord
	switch {
	case HasKnownMeta(current):
		visitor = current
	case current != nil:
		visitor = Merge(current, l.lookupIP(ctx, res, current.IP))
	default:
		ip := l.echoIP(ctx)
		if ip == "" {
			return nil
		}
		visitor = l.lookupIP(ctx, res, ip)
		if visitor == nil {
			visitor = NewRecord(VisitorRecord{IP: ip, VisitedAt: res.visitedAt})
		}
	}

	visitor = l.enrich(ctx, res, visitor)
	if HasKnownMeta(visitor) && l.cache != nil {
		if err := l.cache.Put(ctx, visitor); err != nil {
			logging.L().Warn("failed to update geo cache", "error", err)
		}
	}
	return visitor
}

// enrich fills a record lacking geo data from the per-IP lookups.
func (l *Locator) enrich(ctx context.Context, res *resolution, visitor *VisitorRecord) *VisitorRecord {
	if visitor == nil || HasKnownMeta(visitor) {
		return visitor
	}
	if found := l.lookupIP(ctx, res, visitor.IP); HasKnownMeta(found) {
		return Merge(visitor, found)
	}
	return visitor
}

// lookupIP consults the geo cache, then the per-IP provider URLs, then the
// offline database.
func (l *Locator) lookupIP(ctx context.Context, res *resolution, ip string) *VisitorRecord {
	if found, ok := res.lookedUp[ip]; ok {
		return found
	}

	var found *VisitorRecord
	if l.cache != nil {
		if cached, err := l.cache.Get(ctx, ip); err != nil {
			logging.L().Debug("geo cache read failed", "error", err)
		} else if cached != nil {
			res.lookedUp[ip] = cached
			return cached
		}
	}

	found = l.firstKnown(ctx, res.visitedAt, func(p Provider) string { return p.lookup(ip) })
	if !HasKnownMeta(found) && l.offline != nil {
		offline, err := l.offline.LookupVisitor(ip)
		if err != nil {
			logging.L().Debug("offline geolocation failed", "ip", ip, "error", err)
		} else if offline != nil {
			offline.VisitedAt = res.visitedAt
			if found == nil {
				found = offline
			} else {
				found = Merge(found, offline)
			}
		}
	}

	res.lookedUp[ip] = found
	return found
}

// firstKnown walks the providers in order and returns the first record with
// known geo data, else the first parsed record, else nil.
func (l *Locator) firstKnown(ctx context.Context, visitedAt time.Time, target func(Provider) string) *VisitorRecord {
	var fallback *VisitorRecord
	for _, p := range l.providers {
		if ctx.Err() != nil {
			break
		}
		body, err := l.fetch(ctx, p.Name, target(p))
		if err != nil {
			logging.L().Debug("geolocation provider failed", "provider", p.Name, "error", err)
			continue
		}
		record, err := parseVisitor(body, visitedAt)
		if err != nil {
			logging.L().Debug("geolocation provider returned malformed body", "provider", p.Name, "error", err)
			continue
		}
		if record == nil {
			continue
		}
		if fallback == nil {
			fallback = record
		}
		if HasKnownMeta(record) {
			return record
		}
	}
	return fallback
}

func (l *Locator) echoIP(ctx context.Context) string {
	body, err := l.fetch(ctx, "ip-echo", l.ipEchoURL)
	if err != nil {
		logging.L().Debug("ip echo failed", "error", err)
		return ""
	}
	return parseIP(body)
}

func (l *Locator) fetch(ctx context.Context, name, target string) ([]byte, error) {
	ep := l.endpoints[name]
	if err := ep.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return ep.breaker.Execute(func() ([]byte, error) {
		return httpx.GetBody(ctx, l.client, target)
	})
}
