package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/handlers"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/internal/service"
	"github.com/crmforge/groupposter/pkg/cache"
	"github.com/crmforge/groupposter/pkg/database"
	"github.com/crmforge/groupposter/pkg/logger"
	"github.com/crmforge/groupposter/pkg/messaging"
	"github.com/crmforge/groupposter/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB
	db, err := database.NewMongoDB(cfg.MongoURI, cfg.DatabaseName, 10*time.Second)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := ensureIndexes(db); err != nil {
		log.Error("Failed to ensure indexes: %v", err)
		// Continue anyway, indexes may already exist
	}

	// Redis
	redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// RabbitMQ
	rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitmq.Close()

	if err := rabbitmq.SetupTopology(); err != nil {
		log.Fatal("Failed to setup RabbitMQ topology: %v", err)
	}

	// Repositories
	groupRepo := repository.NewGroupStateRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	groupService := service.NewGroupStateService(groupRepo, cfg.Scheduling, log)
	rampPolicy := service.NewRampUpPolicy(cfg.Scheduling)
	contentGuard := service.NewContentGuard(cfg.Scheduling.DuplicateContentWindowDays)
	slotGenerator := service.NewSlotGenerator(cfg.Scheduling, rampPolicy, time.Now().UnixNano(), log)
	claimer := service.NewClaimer(groupRepo, groupService, rampPolicy, contentGuard, cfg.Scheduling, log)
	importer := service.NewImportService(groupService, groupRepo, cfg.Scheduling, log)

	schedulerService := service.NewSchedulerService(
		groupRepo,
		templateRepo,
		taskRepo,
		notificationRepo,
		groupService,
		rampPolicy,
		contentGuard,
		slotGenerator,
		claimer,
		importer,
		rabbitmq,
		cfg.Scheduling,
		log,
	)

	notifier, err := service.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log)
	if err != nil {
		log.Error("Failed to create telegram notifier, alerts disabled: %v", err)
	}

	usageTracker := service.NewUsageTracker(
		groupRepo,
		taskRepo,
		templateRepo,
		notificationRepo,
		redisCache,
		rabbitmq,
		notifier,
		cfg.Scheduling,
		log,
	)
	usageTracker.Start(ctx)

	// HTTP server
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": cfg.ServiceName})
	})

	httpHandler := handlers.NewHTTPHandler(schedulerService, log)
	if cfg.AuthEnabled {
		auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
		httpHandler.RegisterRoutes(router.Group("/", auth.Authenticate()))
	} else {
		httpHandler.RegisterRoutes(router)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening on port %d", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down %s...", cfg.ServiceName)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed: %v", err)
	}

	log.Info("Shutdown complete")
}

func ensureIndexes(db *database.MongoDB) error {
	indexes := map[string][]mongo.IndexModel{
		"group_states": {
			{Keys: bson.D{{Key: "assigned_accounts", Value: 1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		},
		"posting_tasks": {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "scheduled_at", Value: -1}}},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "scheduled_at", Value: -1}}},
			{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "scheduled_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
			{Keys: bson.D{{Key: "run_id", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for collection, models := range indexes {
		if err := db.CreateIndexes(collection, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	return nil
}
