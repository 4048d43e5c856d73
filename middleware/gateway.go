// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GatewayTokenHeader carries the shared secret the gateway attaches to every request.
const GatewayTokenHeader = "X-Service-Token"

// GatewayAuthMiddleware rejects any request that did not come through the gateway.
// Paths in skip (e.g. /metrics) are let through unchecked.
func GatewayAuthMiddleware(expectedToken string, logger *zap.Logger, skip ...string) fiber.Handler {
	if expectedToken == "" {
		logger.Fatal("❌ [GATEWAY_AUTH] gateway token is not set, service cannot authenticate the gateway")
	}
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skipped[c.Path()] {
			return c.Next()
		}
		token := strings.TrimSpace(c.Get(GatewayTokenHeader))
		if token == "" {
			logger.Warn("🚫 [GATEWAY_AUTH] missing gateway token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			logger.Warn("❌ [GATEWAY_AUTH] invalid gateway token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
