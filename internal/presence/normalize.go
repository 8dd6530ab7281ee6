package presence

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Discord activity types.
const (
	activityPlaying   = 0
	activityStreaming = 1
	activityCustom    = 4
)

// mediaSources in priority order: the first keyword found wins.
var mediaSources = []struct {
	keyword string
	label   string
}{
	{"soundcloud", "SoundCloud"},
	{"youtube", "YouTube"},
	{"spotify", "Spotify"},
}

var (
	mediaVerbPrefix = regexp.MustCompile(`(?i)^(listening|playing|watching)\s*[:\-]?\s*`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// normalize turns a validated relay presence into stored state.
func normalize(p *Presence, subjectID string, now time.Time) state {
	st := state{source: SourceProvider}

	switch p.Status {
	case "online":
		st.availability = AvailabilityOnline
	case "idle":
		st.availability = AvailabilityIdle
	case "dnd":
		st.availability = AvailabilityDND
	default:
		st.availability = AvailabilityOffline
	}

	userID := p.User.ID
	if userID == "" {
		userID = subjectID
	}
	st.avatarURL = AvatarURL(userID, p.User.Avatar)
	if deco := p.User.AvatarDecorationData; deco != nil {
		st.decorationURL, st.decorationFallbackURL = DecorationURLs(deco.Asset)
	}

	if !st.availability.ShowsActivity() {
		return st
	}

	hasSpotify := false
	for i, a := range p.Activities {
		if a.Type == activityCustom {
			if text := strings.TrimSpace(a.State); text != "" && st.customLabel == "" {
				st.customLabel = "Custom: " + text
			}
			continue
		}
		if a.Timestamps != nil && a.Timestamps.End > 0 && !normalizeTimestamp(a.Timestamps.End).After(now) {
			continue
		}

		entry, ok := describeActivity(a)
		if !ok {
			continue
		}
		if a.ID != "" {
			entry.id = a.ID
		} else {
			entry.id = strconv.Itoa(i) + ":" + a.Name
		}
		if strings.HasPrefix(entry.label, "Spotify:") {
			hasSpotify = true
		}
		entry.startedAt = activityStart(a)
		st.activities = append(st.activities, entry)
	}

	if p.ListeningToSpotify && !hasSpotify {
		st.activities = append(st.activities, spotifyActivity(p.Spotify))
	}

	return st
}

func activityStart(a Activity) time.Time {
	if a.Timestamps != nil && a.Timestamps.Start > 0 {
		return normalizeTimestamp(a.Timestamps.Start)
	}
	return normalizeTimestamp(a.CreatedAt)
}

func describeActivity(a Activity) (activity, bool) {
	if source := mediaSource(a); source != "" {
		return activity{label: mediaLabel(a, source), isMedia: true}, true
	}

	name := strings.TrimSpace(a.Name)
	if name == "" {
		return activity{}, false
	}
	switch a.Type {
	case activityPlaying:
		return activity{label: "Game: " + name}, true
	case activityStreaming:
		return activity{label: "Streaming: " + name}, true
	default:
		label := "App: " + name
		if details := strings.TrimSpace(a.Details); details != "" {
			label += " - " + details
		}
		return activity{label: label}, true
	}
}

func mediaSource(a Activity) string {
	fields := []string{a.Name, a.Details, a.State}
	if a.Assets != nil {
		fields = append(fields, a.Assets.LargeText, a.Assets.SmallText)
	}
	haystack := strings.ToLower(strings.Join(fields, " "))

	for _, source := range mediaSources {
		if strings.Contains(haystack, source.keyword) {
			return source.label
		}
	}
	return ""
}

func mediaLabel(a Activity, source string) string {
	title := a.Details
	subtitle := a.State
	if a.Assets != nil {
		if strings.TrimSpace(title) == "" {
			title = a.Assets.LargeText
		}
		if strings.TrimSpace(subtitle) == "" {
			subtitle = a.Assets.SmallText
		}
	}
	return joinMediaLabel(source, cleanMediaField(title, source), cleanMediaField(subtitle, source))
}

func joinMediaLabel(source, title, subtitle string) string {
	switch {
	case title == "" && subtitle == "":
		return source + ": Active"
	case title == "":
		return source + ": " + subtitle
	case subtitle == "" || strings.EqualFold(title, subtitle):
		return source + ": " + title
	default:
		return source + ": " + title + " - " + subtitle
	}
}

// cleanMediaField strips "Listening to"-style verbs and a leading source name
// from a media field and collapses whitespace.
func cleanMediaField(value, source string) string {
	value = whitespaceRun.ReplaceAllString(strings.TrimSpace(value), " ")
	value = mediaVerbPrefix.ReplaceAllString(value, "")
	if len(value) >= len(source) && strings.EqualFold(value[:len(source)], source) {
		rest := strings.TrimLeft(value[len(source):], " ")
		if strings.HasPrefix(rest, "-") || strings.HasPrefix(rest, ":") {
			value = rest[1:]
		} else if rest == "" {
			value = ""
		}
	}
	return strings.TrimSpace(value)
}

func spotifyActivity(s *Spotify) activity {
	entry := activity{id: "spotify:listening", isMedia: true, label: "Spotify: Active"}
	if s == nil {
		return entry
	}
	entry.label = joinMediaLabel("Spotify", cleanMediaField(s.Song, "Spotify"), cleanMediaField(s.Artist, "Spotify"))
	if s.Timestamps != nil {
		entry.startedAt = normalizeTimestamp(s.Timestamps.Start)
	}
	return entry
}
