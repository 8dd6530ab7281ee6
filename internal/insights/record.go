// Package insights produces the approximate view count and a best-effort
// geolocation of the current visitor from unreliable third-party providers.
package insights

import (
	"strings"
	"time"
)

// Unknown marks a field no provider could fill.
const Unknown = "Unknown"

// VisitorRecord is a normalized geolocation result for one IP.
type VisitorRecord struct {
	IP        string    `json:"ip" yaml:"ip"`
	City      string    `json:"city" yaml:"city"`
	Region    string    `json:"region" yaml:"region"`
	Country   string    `json:"country" yaml:"country"`
	Timezone  string    `json:"timezone" yaml:"timezone"`
	Provider  string    `json:"provider" yaml:"provider"`
	VisitedAt time.Time `json:"visitedAt" yaml:"visited_at"`
}

// NewRecord normalizes r: text is trimmed and blank or unknown fields become
// Unknown. It returns nil when r has no IP.
func NewRecord(r VisitorRecord) *VisitorRecord {
	ip := strings.TrimSpace(r.IP)
	if ip == "" {
		return nil
	}
	return &VisitorRecord{
		IP:        ip,
		City:      knownOr(r.City),
		Region:    knownOr(r.Region),
		Country:   knownOr(r.Country),
		Timezone:  knownOr(r.Timezone),
		Provider:  knownOr(r.Provider),
		VisitedAt: r.VisitedAt,
	}
}

func isKnown(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && !strings.EqualFold(value, Unknown)
}

func knownOr(value string) string {
	if isKnown(value) {
		return strings.TrimSpace(value)
	}
	return Unknown
}

// HasKnownMeta reports whether any geo field of r is known.
func HasKnownMeta(r *VisitorRecord) bool {
	if r == nil {
		return false
	}
	for _, v := range []string{r.City, r.Region, r.Country, r.Timezone, r.Provider} {
		if isKnown(v) {
			return true
		}
	}
	return false
}

// Merge combines two records for the same visitor. Each field prefers a's
// known value, then b's known value. The IP comes from a when present.
func Merge(a, b *VisitorRecord) *VisitorRecord {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	visitedAt := a.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = b.VisitedAt
	}
	return NewRecord(VisitorRecord{
		IP:        firstText(a.IP, b.IP),
		City:      pickKnown(a.City, b.City),
		Region:    pickKnown(a.Region, b.Region),
		Country:   pickKnown(a.Country, b.Country),
		Timezone:  pickKnown(a.Timezone, b.Timezone),
		Provider:  pickKnown(a.Provider, b.Provider),
		VisitedAt: visitedAt,
	})
}

func pickKnown(first, second string) string {
	switch {
	case isKnown(first):
		return first
	case isKnown(second):
		return second
	default:
		return firstText(first, second)
	}
}

func firstText(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Equal reports whether two records hold the same values.
func (r *VisitorRecord) Equal(other *VisitorRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.IP == other.IP &&
		r.City == other.City &&
		r.Region == other.Region &&
		r.Country == other.Country &&
		r.Timezone == other.Timezone &&
		r.Provider == other.Provider &&
		r.VisitedAt.Equal(other.VisitedAt)
}
