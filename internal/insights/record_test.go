package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordNormalizes(t *testing.T) {
	assert.Nil(t, NewRecord(VisitorRecord{City: "Hanoi"}))
	assert.Nil(t, NewRecord(VisitorRecord{IP: "   "}))

	r := NewRecord(VisitorRecord{IP: " 1.2.3.4 ", City: " Hanoi ", Region: "unknown", Country: ""})
	require.NotNil(t, r)
	assert.Equal(t, "1.2.3.4", r.IP)
	assert.Equal(t, "Hanoi", r.City)
	assert.Equal(t, Unknown, r.Region)
	assert.Equal(t, Unknown, r.Country)
	assert.Equal(t, Unknown, r.Timezone)
	assert.Equal(t, Unknown, r.Provider)
}

func TestHasKnownMeta(t *testing.T) {
	assert.False(t, HasKnownMeta(nil))
	assert.False(t, HasKnownMeta(NewRecord(VisitorRecord{IP: "1.1.1.1"})))
	assert.True(t, HasKnownMeta(NewRecord(VisitorRecord{IP: "1.1.1.1", Provider: "Cloudflare"})))
}

func TestMergeCombinesKnownFields(t *testing.T) {
	visited := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewRecord(VisitorRecord{IP: "10.0.0.1", City: "Hanoi", VisitedAt: visited})
	b := NewRecord(VisitorRecord{IP: "10.0.0.2", Region: "Ha Noi", Country: "Vietnam"})

	merged := Merge(a, b)
	require.NotNil(t, merged)
	assert.Equal(t, "10.0.0.1", merged.IP)
	assert.Equal(t, "Hanoi", merged.City)
	assert.Equal(t, "Ha Noi", merged.Region)
	assert.Equal(t, "Vietnam", merged.Country)
	assert.Equal(t, Unknown, merged.Timezone)
	assert.Equal(t, visited, merged.VisitedAt)

	assert.Equal(t, "10.0.0.2", Merge(b, a).IP)
	assert.Equal(t, "Hanoi", Merge(b, a).City)

	assert.Same(t, a, Merge(a, nil))
	assert.Same(t, b, Merge(nil, b))
	assert.Nil(t, Merge(nil, nil))
}

func TestMergePrefersFirstKnownValue(t *testing.T) {
	a := NewRecord(VisitorRecord{IP: "10.0.0.1", Country: "VN"})
	b := NewRecord(VisitorRecord{IP: "10.0.0.1", Country: "Vietnam"})
	assert.Equal(t, "VN", Merge(a, b).Country)
}

func TestRecordEqual(t *testing.T) {
	a := NewRecord(VisitorRecord{IP: "1.1.1.1", City: "X"})
	b := NewRecord(VisitorRecord{IP: "1.1.1.1", City: "X"})
	assert.True(t, a.Equal(b))
	b.City = "Y"
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
}
