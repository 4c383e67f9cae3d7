package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/CreatorStudio/app/controllers"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins:     env.GetEnv("CORS_ORIGINS", "http://localhost:3000"),
		AllowCredentials: true,
	}), limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Auth
	api.Post("/auth/register", controllers.HandleAuthRegister)
	api.Post("/auth/login", controllers.HandleAuthLogin)
	api.Post("/auth/logout", controllers.HandleAuthLogout)
	api.Get("/auth/me", middleware.RequireAPISessionAuth, controllers.HandleAuthMe)

	// Billing redirects; checkout works signed out as well
	api.Get("/checkout", controllers.HandleCheckout)
	api.Get("/portal", middleware.RequireAPISessionAuth, controllers.HandlePortal)

	authed := api.Group("", middleware.RequireAPISessionAuth)
	authed.Get("/credits", controllers.HandleGetCredits)

	authed.Post("/avatar", controllers.HandleGenerateAvatar)
	authed.Get("/avatar", controllers.HandleListAvatars)
	authed.Post("/combine", controllers.HandleGenerateCombine)

	authed.Post("/video/generate", controllers.HandleVideoGenerate)
	authed.Get("/video/status/:requestId", controllers.HandleVideoStatus)
	authed.Post("/video", controllers.HandleVideoSave)
	authed.Get("/video", controllers.HandleVideoList)
	authed.Delete("/video", controllers.HandleVideoDelete)

	authed.Get("/user/stats", controllers.HandleUserStats)
	authed.Patch("/user/profile", controllers.HandleUserProfileUpdate)

	h.registerAdminRoutes(api)
}

func (h ApiRouter) registerAdminRoutes(api fiber.Router) {
	admin := api.Group("/admin", middleware.RequireAPIAdmin)
	admin.Get("/link-customer", controllers.HandleAdminGetLinkedCustomer)
	admin.Post("/link-customer", controllers.HandleAdminLinkCustomer)
	admin.Get("/users", controllers.HandleAdminUsers)
	admin.Patch("/users", controllers.HandleAdminUserUpdate)
	admin.Post("/users/:id/credits", controllers.HandleAdminAwardCredits)
	admin.Get("/stats", controllers.HandleAdminStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
