package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/config"
	"github.com/noah-isme/eduguide-api/internal/handler"
	"github.com/noah-isme/eduguide-api/internal/middleware"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RosterImportHandler *handler.RosterImportHandler
	AdminHandler        *handler.AdminHandler
	StudentHandler      *handler.StudentHandler
	SuggestionHandler   *handler.SuggestionHandler
	JWTMiddleware       fiber.Handler
	HealthDB            handler.Pinger
}

// NewApp builds the fiber application with the common middleware stack.
// The body limit leaves headroom over the upload cap so oversized files reach the handler's 413.
func NewApp(cfg config.Config, logger zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	return app
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthDB))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.RosterImportHandler != nil {
		deps.RosterImportHandler.Register(admin)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(admin)
	}

	students := app.Group("/api/students", jwtMiddleware, middleware.RequireRole(models.RoleTeacher))
	if deps.SuggestionHandler != nil {
		deps.SuggestionHandler.RegisterStudentRoutes(students)
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(students)
	}

	if deps.SuggestionHandler != nil {
		gemini := app.Group("/api/gemini", jwtMiddleware, middleware.RequireRole(models.RoleTeacher))
		deps.SuggestionHandler.Register(gemini)
	}
}
