//go:build docker

package cli

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
)

// createFiberConfig returns Fiber configuration for Docker deployments.
// Requests arrive through the container proxy, so the forwarded header is
// trusted only from private networks.
func createFiberConfig(appName string) fiber.Config {
	return fiber.Config{
		AppName:     appName,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ProxyHeader: fiber.HeaderXForwardedFor,
		TrustProxy:  true,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Private: true,
		},
	}
}
