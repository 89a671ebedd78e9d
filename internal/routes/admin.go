package routes

import "github.com/gofiber/fiber/v2"

// RegisterAdminRoutes mounts the admin login and dashboard endpoints.
func RegisterAdminRoutes(api fiber.Router, h Handlers, adminAuth, rateLimiter fiber.Handler) {
	api.Post("/admin/login", rateLimiter, h.Auth.AdminLogin)
	api.Post("/admin/logout", adminAuth, h.Auth.AdminLogout)
	api.Get("/admin/dashboard/transactions", adminAuth, h.History.AdminList)
}
