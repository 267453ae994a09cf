package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/config"
	"github.com/noah-isme/eduguide-api/internal/database"
	"github.com/noah-isme/eduguide-api/internal/handler"
	"github.com/noah-isme/eduguide-api/internal/middleware"
	"github.com/noah-isme/eduguide-api/internal/repository"
	"github.com/noah-isme/eduguide-api/internal/router"
	"github.com/noah-isme/eduguide-api/internal/service"
	"github.com/noah-isme/eduguide-api/pkg/ai"
	cloud "github.com/noah-isme/eduguide-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database handle: %v", err)
	}
	defer sqlDB.Close()

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, caches disabled")
	} else {
		defer redisClient.Close()
	}

	var publisher service.ImportEventPublisher
	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-"+uuid.NewString()[:8])
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, import events disabled")
	} else {
		defer natsConn.Drain()
		publisher = service.NewNATSImportPublisher(natsConn, cfg.EventsSubject, logger)
	}

	var archiver service.RosterArchiver
	if cfg.CloudinaryEnabled() {
		cloudArchiver, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cloudinary unavailable, roster archiving disabled")
		} else {
			archiver = cloudArchiver
		}
	}

	completer := ai.NewOpenAICompleter(ai.OpenAIConfig{
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		MaxTokens: cfg.AIMaxTokens,
		Timeout:   cfg.AITimeout,
		Logger:    logger,
	})
	if !completer.Configured() {
		logger.Warn().Msg("ai api key not configured, suggestions will be unavailable")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	summaryCache := service.NewRosterSummaryCache(redisClient, cfg.SummaryCacheTTL, logger)

	importService := service.NewRosterImportService(userRepo, studentRepo, uploadRepo, summaryCache, archiver, publisher, logger)
	studentService := service.NewStudentService(studentRepo, summaryCache, validate, logger)
	suggestionService := service.NewTeachingSuggestionService(completer, studentRepo, redisClient, cfg.AIStatusCacheTTL, validate, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	statsService := service.NewAdminStatsService(userRepo, studentRepo, uploadRepo, logger)

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userService.EnsureAdmin(bootstrapCtx, cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		logger.Error().Err(err).Msg("failed to bootstrap admin user")
	}
	cancelBootstrap()

	app := router.NewApp(cfg, logger)
	router.Register(app, cfg, router.Dependencies{
		RosterImportHandler: handler.NewRosterImportHandler(importService, cfg.UploadMaxSizeMB, cfg.UploadTempDir, logger),
		AdminHandler:        handler.NewAdminHandler(statsService, userService, logger),
		StudentHandler:      handler.NewStudentHandler(studentService, logger),
		SuggestionHandler:   handler.NewSuggestionHandler(suggestionService, middleware.RateLimit("suggestions", cfg.SuggestionRateLimit, time.Minute), logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		HealthDB:            sqlDB,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("server started")
	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
