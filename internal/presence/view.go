package presence

import "strings"

// Tone is a coarse colour hint for a status badge.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneMuted   Tone = "muted"
	ToneAlert   Tone = "alert"
)

// View is a Snapshot rendered into display strings.
type View struct {
	StatusLabel    string          `json:"statusLabel"`
	Tone           Tone            `json:"tone"`
	CustomLabel    string          `json:"customLabel,omitempty"`
	DurationLabel  string          `json:"durationLabel,omitempty"`
	ActivityLabels []string        `json:"activityLabels"`
	Activities     []ActivityEntry `json:"activities"`
}

// Describe renders snap the way the status badge shows it.
func Describe(snap Snapshot) View {
	v := View{
		CustomLabel:    snap.CustomStatusLabel,
		Activities:     snap.Activities,
		ActivityLabels: make([]string, 0, len(snap.Activities)),
	}
	if v.Activities == nil {
		v.Activities = []ActivityEntry{}
	}

	live := false
	switch snap.Availability {
	case AvailabilityOnline:
		v.StatusLabel, v.Tone, live = "Owner Online (Discord)", ToneSuccess, true
	case AvailabilityIdle:
		v.StatusLabel, v.Tone, live = "Owner Idle (Discord)", ToneWarning, true
	case AvailabilityDND:
		v.StatusLabel, v.Tone, live = "Owner Do Not Disturb", ToneDanger, true
	case AvailabilityNotLinked:
		v.StatusLabel, v.Tone = "Lanyard Not Linked", ToneAlert
	case AvailabilityUnavailable:
		v.StatusLabel, v.Tone = "Discord Unavailable", ToneAlert
	case AvailabilityBrowserOnline:
		v.StatusLabel, v.Tone = "Owner Online", ToneSuccess
	case AvailabilityBrowserOffline:
		v.StatusLabel, v.Tone = "Owner Offline", ToneMuted
	default:
		v.StatusLabel, v.Tone = "Owner Offline (Discord)", ToneMuted
	}
	if !live {
		v.CustomLabel = ""
		return v
	}

	for _, a := range snap.Activities {
		v.ActivityLabels = append(v.ActivityLabels, a.Label)
	}
	// the badge times the first activity only
	if len(snap.Activities) > 0 && snap.Activities[0].Elapsed != "" {
		v.DurationLabel = "Active: " + snap.Activities[0].Elapsed
	}
	return v
}

// String is a single-line rendering used by the CLI.
func (v View) String() string {
	parts := []string{v.StatusLabel}
	if v.CustomLabel != "" {
		parts = append(parts, v.CustomLabel)
	}
	parts = append(parts, v.ActivityLabels...)
	if v.DurationLabel != "" {
		parts = append(parts, v.DurationLabel)
	}
	return strings.Join(parts, " | ")
}
