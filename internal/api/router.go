package api

import (
	_ "finadvisor/docs"
	"finadvisor/internal/api/handlers"
	"finadvisor/pkg/auth"
	"finadvisor/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func SetupRouter(
	authHandler *handlers.AuthHandler,
	recHandler *handlers.RecommendationHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// Swagger - importing docs registers the OpenAPI definition through init()
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	recs := protected.Group("/recommendations")
	recs.Post("/generate", recHandler.Generate)
	recs.Get("", recHandler.List)
	recs.Get("/status/:status", recHandler.ListByStatus)
	recs.Get("/type/:type", recHandler.ListByType)
	recs.Get("/stats", recHandler.Stats)
	recs.Post("/:id/view", recHandler.MarkViewed)
	recs.Post("/:id/progress", recHandler.MarkInProgress)
	recs.Post("/:id/complete", recHandler.MarkCompleted)
	recs.Post("/:id/dismiss", recHandler.MarkDismissed)
	recs.Post("/:id/feedback", recHandler.SubmitFeedback)
	// Active-only read lives on the service but is deliberately not routed;
	// clients filter via /status/ACTIVE.

	return app
}
