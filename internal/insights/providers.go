package insights

import (
	"net/url"
	"strings"
)

// Provider is one geolocation service.
type Provider struct {
	Name string
	// CurrentURL describes the caller's own IP.
	CurrentURL string
	// LookupURL describes an arbitrary IP; %s is replaced by the escaped IP.
	LookupURL string
}

func (p Provider) lookup(ip string) string {
	return strings.Replace(p.LookupURL, "%s", url.PathEscape(ip), 1)
}

// DefaultProviders are queried in this order.
var DefaultProviders = []Provider{
	{Name: "ipapi.co", CurrentURL: "https://ipapi.co/json/", LookupURL: "https://ipapi.co/%s/json/"},
	{Name: "ipwho.is", CurrentURL: "https://ipwho.is/", LookupURL: "https://ipwho.is/%s"},
	{Name: "ipinfo.io", CurrentURL: "https://ipinfo.io/json", LookupURL: "https://ipinfo.io/%s/json"},
}

// DefaultIPEchoURL answers {"ip": "..."} for the caller.
const DefaultIPEchoURL = "https://api.ipify.org?format=json"
