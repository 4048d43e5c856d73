// middleware/auth.go
package middleware

import (
	"strings"

	"wallet-trust-system/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const walletIDKey = "wallet_id"

// WalletAuthMiddleware verifies the wallet bearer token and stores the acting
// wallet id in c.Locals for the handlers below it.
func WalletAuthMiddleware(secret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		raw := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || raw == authHeader {
			logger.Warn("🚫 [WALLET_AUTH] missing bearer token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "wallet bearer token missing",
			})
		}

		walletID, _, err := utils.ParseWalletToken(secret, strings.TrimSpace(raw))
		if err != nil {
			logger.Warn("❌ [WALLET_AUTH] rejected token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired wallet token",
			})
		}

		c.Locals(walletIDKey, walletID)
		return c.Next()
	}
}

// WalletID returns the acting wallet set by WalletAuthMiddleware.
func WalletID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(walletIDKey).(uint)
	return id, ok && id != 0
}

// AdminContextMiddleware only admits requests whose gateway-supplied
// X-User-Roles header includes "admin".
func AdminContextMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if strings.TrimSpace(r) == "admin" && userID != "" {
				c.Locals("user_id", userID)
				return c.Next()
			}
		}
		logger.Warn("🚫 [ADMIN_CTX] admin role required",
			zap.String("path", c.Path()),
			zap.String("user_id", userID),
		)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "admin role required",
		})
	}
}
