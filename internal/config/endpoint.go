package config

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeEndpoint validates and normalizes an upstream endpoint URL.
// The scheme must be one of allowedSchemes; a trailing slash is removed and
// queries or fragments are rejected.
func SanitizeEndpoint(raw string, allowedSchemes ...string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}
	if strings.ContainsAny(cleaned, " \t\r\n") {
		return "", fmt.Errorf("endpoint cannot contain whitespace")
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint format")
	}

	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("endpoint scheme %q not allowed", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("endpoint must include a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("endpoint must not include query or fragment")
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/"), nil
}
