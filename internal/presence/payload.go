package presence

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Relay socket opcodes.
const (
	opEvent     = 0
	opHello     = 1
	opSubscribe = 2
	opHeartbeat = 3
)

// Relay event types carrying presence.
const (
	eventInitState      = "INIT_STATE"
	eventPresenceUpdate = "PRESENCE_UPDATE"
)

// DefaultHeartbeatInterval applies when the relay advertises an interval of
// one second or less.
const DefaultHeartbeatInterval = 30 * time.Second

// ValidationError reports a presence payload that cannot be trusted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid presence payload: " + e.Reason
}

// Presence is the relay's view of one Discord user.
type Presence struct {
	UserID             string      `json:"user_id,omitempty"`
	Status             string      `json:"discord_status"`
	User               DiscordUser `json:"discord_user"`
	Activities         []Activity  `json:"activities"`
	ListeningToSpotify bool        `json:"listening_to_spotify"`
	Spotify            *Spotify    `json:"spotify,omitempty"`
}

type DiscordUser struct {
	ID                   string                `json:"id"`
	Avatar               string                `json:"avatar"`
	AvatarDecorationData *AvatarDecorationData `json:"avatar_decoration_data,omitempty"`
}

type AvatarDecorationData struct {
	Asset string `json:"asset"`
}

// Activity is one entry of a presence's activity list.
type Activity struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Type       int         `json:"type"`
	State      string      `json:"state,omitempty"`
	Details    string      `json:"details,omitempty"`
	CreatedAt  float64     `json:"created_at,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

type Timestamps struct {
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

type Assets struct {
	LargeText string `json:"large_text,omitempty"`
	SmallText string `json:"small_text,omitempty"`
}

type Spotify struct {
	Song       string      `json:"song"`
	Artist     string      `json:"artist"`
	Album      string      `json:"album,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
}

var knownStatuses = map[string]struct{}{
	"online":  {},
	"idle":    {},
	"dnd":     {},
	"offline": {},
}

// ParsePresence decodes and validates a presence object.
func ParsePresence(raw []byte) (*Presence, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] != '{' {
		return nil, &ValidationError{Reason: "not an object"}
	}

	var p Presence
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if _, ok := knownStatuses[p.Status]; !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	return &p, nil
}

// Frame is an inbound relay socket message.
type Frame struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// outboundFrame is a message the client sends to the relay.
type outboundFrame struct {
	Op int `json:"op"`
	D  any `json:"d,omitempty"`
}

type subscribeData struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

func subscribeFrame(subjectID string) outboundFrame {
	return outboundFrame{Op: opSubscribe, D: subscribeData{SubscribeToID: subjectID}}
}

func heartbeatFrame() outboundFrame {
	return outboundFrame{Op: opHeartbeat}
}

// heartbeatInterval reads the interval advertised by a hello frame.
func heartbeatInterval(f Frame) time.Duration {
	var hello struct {
		HeartbeatInterval float64 `json:"heartbeat_interval"`
	}
	if len(f.D) > 0 {
		_ = json.Unmarshal(f.D, &hello)
	}
	if hello.HeartbeatInterval <= 1000 {
		return DefaultHeartbeatInterval
	}
	return time.Duration(hello.HeartbeatInterval) * time.Millisecond
}

// presenceFromFrame extracts the subject's presence from an event frame.
// It returns nil for frames that carry nothing usable for subjectID.
func presenceFromFrame(f Frame, subjectID string) *Presence {
	if f.Op != opEvent || (f.T != eventInitState && f.T != eventPresenceUpdate) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(f.D, &fields); err != nil {
		return nil
	}

	if rawStatus, ok := fields["discord_status"]; ok {
		var status string
		if json.Unmarshal(rawStatus, &status) == nil {
			if f.T == eventPresenceUpdate {
				var userID string
				if rawUser, ok := fields["user_id"]; ok && json.Unmarshal(rawUser, &userID) == nil && userID != "" && userID != subjectID {
					return nil
				}
			}
			p, err := ParsePresence(f.D)
			if err != nil {
				return nil
			}
			return p
		}
	}

	// INIT_STATE may key presences by user ID.
	mapped, ok := fields[subjectID]
	if !ok {
		return nil
	}
	p, err := ParsePresence(mapped)
	if err != nil {
		return nil
	}
	return p
}
