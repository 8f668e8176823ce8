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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/config"
	"github.com/noah-isme/bounty-chat/internal/database"
	"github.com/noah-isme/bounty-chat/internal/handler"
	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/observability"
	"github.com/noah-isme/bounty-chat/internal/repository"
	"github.com/noah-isme/bounty-chat/internal/router"
	"github.com/noah-isme/bounty-chat/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := map[string]handler.HealthProbe{"database": database.PingDatabase(db)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		probes["redis"] = database.PingRedis(redisClient)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	identity := middleware.NewIdentityResolver(cfg.JWTSecret, cfg.SessionCookieName)

	chatRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reportRepo := repository.NewReportRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	presence := service.NewPresenceTracker(logger)
	resolver := service.NewConversationResolver(chatRepo, reportRepo, companyRepo, logger)
	chatService := service.NewChatService(resolver, chatRepo, messageRepo, presence, validate, logger, service.ChatServiceOptions{
		Redis:        redisClient,
		NATS:         natsConn,
		ChannelBase:  cfg.ChannelBase,
		CacheTTL:     cfg.ChatCacheTTL,
		SendBuffer:   cfg.ChatSendBuffer,
		PingInterval: cfg.ChatPingInterval,
	})
	adminChatService := service.NewAdminChatService(chatRepo, messageRepo, presence, validate, logger)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	chatService.Start(relayCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ChatHandler:       handler.NewChatHandler(chatService, identity, logger),
		AdminChatHandler:  handler.NewAdminChatHandler(adminChatService, logger),
		SessionMiddleware: middleware.SessionProtected(identity),
		ConnectLimiter:    middleware.RateLimit("chat-connect", cfg.ConnectRateLimit, cfg.ConnectRateWindow),
		HealthProbes:      probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Msg("chat server started")
	waitForShutdown(app, stopRelay, logger)
}

func waitForShutdown(app *fiber.App, stopRelay context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopRelay()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
