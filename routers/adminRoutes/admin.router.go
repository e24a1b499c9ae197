package adminRoutes

import (
	adminController "qbank/controllers/admin"
	"qbank/middleware"
	adminValidator "qbank/validators/admin"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, ctl *adminController.Controller) {
	adminGroup := app.Group("/admin", middleware.JWTMiddleware, middleware.AdminOnlyMiddleware)

	// Cache surface
	adminGroup.Get("/cache/info", ctl.CacheInfo)
	adminGroup.Get("/cache/key", ctl.CacheKeyInfo)
	adminGroup.Post("/cache/refresh", ctl.RefreshCache)
	adminGroup.Post("/cache/expire", adminValidator.ExpireCache(), ctl.ExpireCache)

	// Usage statistics
	adminGroup.Get("/usage", ctl.UsageStats)
	adminGroup.Post("/usage/flush", ctl.FlushUsage)
}
