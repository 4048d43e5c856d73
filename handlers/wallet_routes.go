// handlers/wallet_routes.go
package handlers

import (
	"wallet-trust-system/middleware"
	"wallet-trust-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService) {
	// 🔓 Credentials exchange, still behind gateway auth
	app.Post("/auth/token", walletService.IssueToken)

	// 🔐 Wallet routes act as the wallet named in the bearer token
	wallet := app.Group("/wallet", middleware.WalletAuthMiddleware(walletService.JWTSecret, walletService.Logger))

	wallet.Get("/me", walletService.Me)

	wallet.Post("/trust", walletService.RequestTrust)
	wallet.Get("/trust", walletService.ListTrust)
	wallet.Post("/trust/:id/accept", walletService.AcceptTrust())
	wallet.Post("/trust/:id/decline", walletService.DeclineTrust())
	wallet.Post("/trust/:id/cancel", walletService.CancelTrust())

	wallet.Post("/transfers", walletService.AttemptTransfer)
	wallet.Get("/transfers", walletService.ListTransfers)
	wallet.Get("/transfers/pending", walletService.PendingTransfers)
	wallet.Post("/transfers/:id/accept", walletService.AcceptTransfer())
	wallet.Post("/transfers/:id/decline", walletService.DeclineTransfer())
	wallet.Post("/transfers/:id/cancel", walletService.CancelTransfer())
	wallet.Post("/transfers/:id/fulfill", walletService.FulfillTransfer())

	// 🛡️ Admin endpoints
	admin := app.Group("/admin", middleware.AdminContextMiddleware(walletService.Logger))
	admin.Post("/wallets", walletService.CreateWallet)
}
