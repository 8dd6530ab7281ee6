package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisitorProviderShapes(t *testing.T) {
	visited := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		body     string
		expected VisitorRecord
	}{
		{
			name: "ipapi.co",
			body: `{"ip":"8.8.8.8","city":"Mountain View","region":"California","country_name":"United States","country_code":"US","timezone":"America/Los_Angeles","org":"GOOGLE","asn":"AS15169"}`,
			expected: VisitorRecord{IP: "8.8.8.8", City: "Mountain View", Region: "California", Country: "United States",
				Timezone: "America/Los_Angeles", Provider: "GOOGLE", VisitedAt: visited},
		},
		{
			name: "ipwho.is",
			body: `{"ip":"1.1.1.1","success":true,"city":"Sydney","region":"New South Wales","country":"Australia","timezone":{"id":"Australia/Sydney"},"connection":{"isp":"Cloudflare, Inc.","org":"APNIC"}}`,
			expected: VisitorRecord{IP: "1.1.1.1", City: "Sydney", Region: "New South Wales", Country: "Australia",
				Timezone: "Australia/Sydney", Provider: "Cloudflare, Inc.", VisitedAt: visited},
		},
		{
			name: "ipinfo.io",
			body: `{"ip":"9.9.9.9","city":"Berkeley","region":"California","country":"US","timezone":"America/Los_Angeles","asn":{"name":"Quad9"}}`,
			expected: VisitorRecord{IP: "9.9.9.9", City: "Berkeley", Region: "California", Country: "US",
				Timezone: "America/Los_Angeles", Provider: "Quad9", VisitedAt: visited},
		},
		{
			name: "nested variants",
			body: `{"query":"4.4.4.4","location":{"city":"Paris","region":"IDF","country":"France","timezone":"Europe/Paris"},"company":{"name":"ACME"},"countryCode":7}`,
			expected: VisitorRecord{IP: "4.4.4.4", City: "Paris", Region: "IDF", Country: "France",
				Timezone: "Europe/Paris", Provider: "ACME", VisitedAt: visited},
		},
		{
			name:     "ip only",
			body:     `{"data":{"ip":"5.5.5.5"},"city":null,"region":"Unknown"}`,
			expected: VisitorRecord{IP: "5.5.5.5", City: Unknown, Region: Unknown, Country: Unknown, Timezone: Unknown, Provider: Unknown, VisitedAt: visited},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := parseVisitor([]byte(tt.body), visited)
			require.NoError(t, err)
			require.NotNil(t, record)
			assert.Equal(t, tt.expected, *record)
		})
	}
}

func TestParseVisitorRejects(t *testing.T) {
	record, err := parseVisitor([]byte(`{"success":false,"ip":"1.1.1.1","message":"reserved range"}`), time.Now())
	assert.NoError(t, err)
	assert.Nil(t, record)

	record, err = parseVisitor([]byte(`{"city":"Nowhere"}`), time.Now())
	assert.NoError(t, err)
	assert.Nil(t, record)

	_, err = parseVisitor([]byte(`<html>429</html>`), time.Now())
	assert.Error(t, err)
}

func TestParseIP(t *testing.T) {
	assert.Equal(t, "2.2.2.2", parseIP([]byte(`{"ip":" 2.2.2.2 "}`)))
	assert.Equal(t, "", parseIP([]byte(`{"ip":12}`)))
	assert.Equal(t, "", parseIP([]byte(`nope`)))
}
