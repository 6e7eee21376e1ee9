package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"

	"fsm-intake/internal/config"
	"fsm-intake/internal/gmail"
	"fsm-intake/internal/handler"
	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/logger"
	"fsm-intake/internal/repository"
	"fsm-intake/internal/repository/memory"
	"fsm-intake/internal/repository/postgres"
	redisrepo "fsm-intake/internal/repository/redis"
	"fsm-intake/internal/router"
	"fsm-intake/internal/service"
	"fsm-intake/internal/sse"
	"fsm-intake/internal/workflow"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Config validation failed:", err)
	}

	appLogger := logger.NewForEnv(cfg.Env)
	defer appLogger.Sync()

	emailRepo, closeStore, err := openStore(cfg, appLogger)
	if err != nil {
		appLogger.Errorf("Failed to open %s store: %v", cfg.StoreBackend, err)
		os.Exit(1)
	}
	defer closeStore()

	sessions := interpreter.NewSessions()
	sseManager := sse.NewSSEManager(appLogger)

	workflowClient := workflow.NewWorkflowClient(workflow.Settings{
		URL:     cfg.WorkflowURL,
		Timeout: cfg.WorkflowTimeout,
	}, appLogger)

	var gmailClient service.GmailClient
	if cfg.ReplyEnabled() {
		gmailClient, err = gmail.NewGmailClient(cfg.GmailAccessToken, cfg.GmailSender, appLogger)
		if err != nil {
			appLogger.Errorf("Failed to create Gmail client: %v", err)
			os.Exit(1)
		}
	} else {
		appLogger.Info("GMAIL_ACCESS_TOKEN not set, replies are disabled")
	}

	intakeService := service.NewIntakeService(emailRepo, workflowClient, sseManager, appLogger)
	inboxService := service.NewInboxService(emailRepo, sessions, sseManager, appLogger)
	replyService := service.NewReplyService(emailRepo, sessions, gmailClient, appLogger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.SetupMiddleware(e, router.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SessionStore:   handler.NewSessionStore([]byte(cfg.SessionSecret), cfg.Env == "production"),
	}, appLogger)
	router.SetupRoutes(e,
		handler.NewIntakeHandler(intakeService, appLogger),
		handler.NewEmailHandler(inboxService, intakeService, replyService, sseManager, appLogger),
	)

	job := sse.NewHousekeepingJob(sseManager, sessions, appLogger, cfg.HeartbeatPeriod, cfg.SessionTTL)
	go job.Start()

	go func() {
		appLogger.Infof("Starting server on port %s (store=%s)", cfg.Port, cfg.StoreBackend)
		appLogger.Infof("Workflow webhook endpoint: http://localhost:%s/api/webhook", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Errorf("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	appLogger.Info("Shutting down gracefully")
	job.Stop()
	// SSE streams only end when their channels close
	sseManager.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Server shutdown: %v", err)
	}
}

// openStore builds the configured record store wrapped with metrics.
func openStore(cfg *config.Config, appLogger *logger.Logger) (repository.EmailRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		appLogger.Info("Using Redis record store")
		repo := redisrepo.NewRedisEmailRepository(client, cfg.RedisKeyPrefix, cfg.MaxEmails)
		return repository.NewInstrumented(repo, cfg.StoreBackend), func() { client.Close() }, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.InitializeDatabase(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		appLogger.Info("Using PostgreSQL record store")
		repo := postgres.NewPostgresEmailRepository(db, cfg.MaxEmails)
		return repository.NewInstrumented(repo, cfg.StoreBackend), func() { db.Close() }, nil

	default:
		appLogger.Info("Using in-memory record store")
		repo := memory.NewInMemoryEmailRepositoryWithCap(cfg.MaxEmails)
		return repository.NewInstrumented(repo, config.BackendMemory), func() {}, nil
	}
}
