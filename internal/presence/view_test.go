package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeLabels(t *testing.T) {
	tests := map[Availability]struct {
		label string
		tone  Tone
	}{
		AvailabilityOnline:         {"Owner Online (Discord)", ToneSuccess},
		AvailabilityIdle:           {"Owner Idle (Discord)", ToneWarning},
		AvailabilityDND:            {"Owner Do Not Disturb", ToneDanger},
		AvailabilityOffline:        {"Owner Offline (Discord)", ToneMuted},
		AvailabilityNotLinked:      {"Lanyard Not Linked", ToneAlert},
		AvailabilityUnavailable:    {"Discord Unavailable", ToneAlert},
		AvailabilityBrowserOnline:  {"Owner Online", ToneSuccess},
		AvailabilityBrowserOffline: {"Owner Offline", ToneMuted},
	}

	for availability, want := range tests {
		v := Describe(Snapshot{Availability: availability})
		assert.Equal(t, want.label, v.StatusLabel, string(availability))
		assert.Equal(t, want.tone, v.Tone, string(availability))
	}
}

func TestDescribeActivityLabels(t *testing.T) {
	v := Describe(Snapshot{
		Availability:      AvailabilityOnline,
		CustomStatusLabel: "Custom: hi",
		Activities: []ActivityEntry{
			{ID: "1", Label: "Game: Chess", Elapsed: "2m 05s"},
			{ID: "2", Label: "App: Figma", Elapsed: "40m 00s"},
		},
	})

	assert.Equal(t, ToneSuccess, v.Tone)
	assert.Equal(t, []string{"Game: Chess", "App: Figma"}, v.ActivityLabels)
	assert.Equal(t, "Active: 2m 05s", v.DurationLabel)
	assert.Equal(t, "Owner Online (Discord) | Custom: hi | Game: Chess | App: Figma | Active: 2m 05s", v.String())
}

func TestDescribeOmitsDurationWithoutFirstElapsed(t *testing.T) {
	v := Describe(Snapshot{
		Availability: AvailabilityIdle,
		Activities: []ActivityEntry{
			{ID: "1", Label: "App: Figma"},
			{ID: "2", Label: "Game: Chess", Elapsed: "2m 05s"},
		},
	})

	assert.Empty(t, v.DurationLabel)
	assert.Equal(t, "Owner Idle (Discord) | App: Figma | Game: Chess", v.String())
}

func TestDescribeHidesDetailWhenNotLive(t *testing.T) {
	v := Describe(Snapshot{
		Availability:      AvailabilityNotLinked,
		CustomStatusLabel: "Custom: hi",
		Activities:        []ActivityEntry{{ID: "1", Label: "Game: Chess", Elapsed: "9s"}},
	})

	assert.Empty(t, v.CustomLabel)
	assert.Empty(t, v.DurationLabel)
	assert.Empty(t, v.ActivityLabels)
	assert.Equal(t, "Lanyard Not Linked", v.String())
}
