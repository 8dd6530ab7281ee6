// Package presence tracks the live status of the site owner through the
// Lanyard presence relay, combining a WebSocket subscription with HTTP polling.
package presence

import (
	"strings"
	"time"
)

// Availability is the single status shown to visitors.
type Availability string

const (
	AvailabilityOnline         Availability = "online"
	AvailabilityIdle           Availability = "idle"
	AvailabilityDND            Availability = "dnd"
	AvailabilityOffline        Availability = "offline"
	AvailabilityUnavailable    Availability = "unavailable"
	AvailabilityNotLinked      Availability = "not_linked"
	AvailabilityBrowserOnline  Availability = "browser_online"
	AvailabilityBrowserOffline Availability = "browser_offline"
)

// ShowsActivity reports whether activities may be attached to a.
func (a Availability) ShowsActivity() bool {
	switch a {
	case AvailabilityOnline, AvailabilityIdle, AvailabilityDND:
		return true
	default:
		return false
	}
}

// Source names the subsystem that produced an Availability.
type Source string

const (
	SourceBrowser  Source = "browser"
	SourceProvider Source = "presence_provider"
)

// SocketState is the relay connection state.
type SocketState int32

const (
	StateDisconnected SocketState = iota
	StateConnecting
	StateSubscribed
	StateDegraded
)

func (s SocketState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// ActivityEntry is one displayable activity line.
type ActivityEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	IsMedia bool   `json:"isMedia"`
	// Elapsed is the formatted time since the activity started, or empty.
	Elapsed string `json:"elapsedDuration"`
}

// Snapshot is the read-only presence view handed to the presentation layer.
type Snapshot struct {
	Availability                Availability    `json:"availability"`
	Source                      Source          `json:"source"`
	Activities                  []ActivityEntry `json:"activities"`
	CustomStatusLabel           string          `json:"customStatusLabel"`
	AvatarURL                   string          `json:"avatarUrl"`
	AvatarDecorationURL         string          `json:"avatarDecorationUrl"`
	AvatarDecorationFallbackURL string          `json:"avatarDecorationFallbackUrl"`
}

// placeholderSubjects are the IDs shipped in sample configuration.
var placeholderSubjects = map[string]struct{}{
	"":                     {},
	"YOUR_DISCORD_USER_ID": {},
	"YOUR_DISCORD_ID":      {},
}

// IsPlaceholderSubject reports whether id is unset or a sample value.
func IsPlaceholderSubject(id string) bool {
	_, ok := placeholderSubjects[strings.TrimSpace(id)]
	return ok
}

// activity is an ActivityEntry before its elapsed time is formatted.
type activity struct {
	id        string
	label     string
	isMedia   bool
	startedAt time.Time
}

// state is the stored presence; Snapshot derives from it at read time.
type state struct {
	availability          Availability
	source                Source
	activities            []activity
	customLabel           string
	avatarURL             string
	decorationURL         string
	decorationFallbackURL string
}

func browserState(online bool) state {
	if online {
		return state{availability: AvailabilityBrowserOnline, source: SourceBrowser}
	}
	return state{availability: AvailabilityBrowserOffline, source: SourceBrowser}
}

func (s state) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Availability:                s.availability,
		Source:                      s.source,
		Activities:                  []ActivityEntry{},
		AvatarURL:                   s.avatarURL,
		AvatarDecorationURL:         s.decorationURL,
		AvatarDecorationFallbackURL: s.decorationFallbackURL,
	}
	if !s.availability.ShowsActivity() {
		return snap
	}

	snap.CustomStatusLabel = s.customLabel
	for _, a := range s.activities {
		snap.Activities = append(snap.Activities, ActivityEntry{
			ID:      a.id,
			Label:   a.label,
			IsMedia: a.isMedia,
			Elapsed: FormatDuration(a.startedAt, now),
		})
	}
	return snap
}
