package insights

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

// text decodes a JSON string and ignores every other JSON type.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*t = text(s)
	}
	return nil
}

// nested covers the small objects providers hang fields off: connection,
// asn, company, data and timezone.
type nested struct {
	ID   text `json:"id"`
	IP   text `json:"ip"`
	Name text `json:"name"`
	ISP  text `json:"isp"`
	Org  text `json:"org"`
}

func (n *nested) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain nested
	var p plain
	if json.Unmarshal(b, &p) == nil {
		*n = nested(p)
	}
	return nil
}

// zone is a timezone given either as a string or as {"id": ...}.
type zone string

func (z *zone) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*z = zone(s)
		return nil
	}
	var n nested
	if n.UnmarshalJSON(b) == nil {
		*z = zone(n.ID)
	}
	return nil
}

type location struct {
	City     text `json:"city"`
	Region   text `json:"region"`
	Country  text `json:"country"`
	Timezone text `json:"timezone"`
}

func (l *location) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain location
	var p plain
	if json.Unmarshal(b, &p) == nil {
		*l = location(p)
	}
	return nil
}

// geoPayload is the union of the ipapi.co, ipwho.is and ipinfo.io shapes.
type geoPayload struct {
	Success *bool `json:"success"`

	IP    text   `json:"ip"`
	Query text   `json:"query"`
	Data  nested `json:"data"`

	City        text     `json:"city"`
	Region      text     `json:"region"`
	RegionName  text     `json:"region_name"`
	CountryName text     `json:"country_name"`
	Country     text     `json:"country"`
	CountryCode text     `json:"country_code"`
	CountryISO  text     `json:"countryCode"`
	Timezone    zone     `json:"timezone"`
	Location    location `json:"location"`

	Org        text   `json:"org"`
	Network    text   `json:"network"`
	ISP        text   `json:"isp"`
	Connection nested `json:"connection"`
	ASN        nested `json:"asn"`
	Company    nested `json:"company"`
}

// parseVisitor normalizes a provider body. A nil record with a nil error
// means the provider answered without a usable visitor.
func parseVisitor(body []byte, visitedAt time.Time) (*VisitorRecord, error) {
	var p geoPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.Success != nil && !*p.Success {
		return nil, nil
	}

	return NewRecord(VisitorRecord{
		IP:       firstText(string(p.IP), string(p.Query), string(p.Data.IP)),
		City:     firstText(string(p.City), string(p.Location.City)),
		Region:   firstText(string(p.Region), string(p.RegionName), string(p.Location.Region)),
		Country:  firstText(string(p.CountryName), string(p.Country), string(p.CountryCode), string(p.CountryISO), string(p.Location.Country)),
		Timezone: firstText(string(p.Timezone), string(p.Location.Timezone)),
		Provider: firstText(
			string(p.Org),
			string(p.Network),
			string(p.ISP),
			string(p.Connection.ISP),
			string(p.Connection.Org),
			string(p.ASN.Name),
			string(p.Company.Name),
		),
		VisitedAt: visitedAt,
	}), nil
}

// parseIP reads {"ip": "..."} from a what-is-my-IP endpoint.
func parseIP(body []byte) string {
	var p struct {
		IP text `json:"ip"`
	}
	if json.Unmarshal(body, &p) != nil {
		return ""
	}
	return firstText(string(p.IP))
}
