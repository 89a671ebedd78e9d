package routes

import "github.com/gofiber/fiber/v2"

// RegisterClientRoutes mounts the wallet API. The gateway callback is
// authenticated by its signature rather than a bearer token.
func RegisterClientRoutes(api fiber.Router, h Handlers, clientAuth, idempotent fiber.Handler) {
	api.Get("/login", h.Auth.ClientLogin)

	deposits := api.Group("/deposit")
	deposits.Post("/callback", h.Deposit.Callback)
	deposits.Get("/", clientAuth, h.Deposit.Balance)
	deposits.Post("/", clientAuth, idempotent, h.Deposit.Create)
	deposits.Post("/manual", clientAuth, idempotent, h.Deposit.Manual)
	deposits.Get("/generate-order-id", clientAuth, h.Deposit.GenerateOrderID)
	deposits.Get("/transaction-status/:order_id", clientAuth, h.Deposit.TransactionStatus)

	api.Post("/withdrawal", clientAuth, idempotent, h.Withdrawal.Withdraw)
	api.Get("/transaction", clientAuth, h.History.List)
}
