package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingmodels "github.com/AntoinePinto/docu-talk/billing/models"
	chatbotmodels "github.com/AntoinePinto/docu-talk/chatbot/models"
	conversationmodels "github.com/AntoinePinto/docu-talk/conversation/models"
	"github.com/AntoinePinto/docu-talk/pkg/config"
	"github.com/AntoinePinto/docu-talk/pkg/di"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/router"
	"github.com/AntoinePinto/docu-talk/pkg/secrets"
	"github.com/AntoinePinto/docu-talk/shared/observability"
	usermodels "github.com/AntoinePinto/docu-talk/user/models"
)

func main() {
	// Load configuration (reads .env when present)
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	if cfg.Logging.Level != "" {
		logConfig.Level = cfg.Logging.Level
	}
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	// Initialize the secrets manager (Vault with env fallback)
	if err := secrets.Init(log); err != nil {
		log.Warn("Secrets manager unavailable, using environment only", "error", err.Error())
	}

	// Observability: tracing and the Prometheus scrape endpoint
	shutdownTracing := observability.SetupTracing("docu-talk")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(
		&usermodels.User{},
		&billingmodels.CreditAccount{},
		&billingmodels.UsageEvent{},
		&chatbotmodels.Chatbot{},
		&chatbotmodels.Document{},
		&chatbotmodels.SuggestedPrompt{},
		&chatbotmodels.ChatbotAccess{},
		&conversationmodels.Conversation{},
		&conversationmodels.Message{},
	); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Create indexes for better query performance
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_conversation")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_usage_events_user ON usage_events(user_id)").Error; err != nil {
		log.LogError(err, "Failed to create usage index", "index", "idx_usage_events_user")
	}

	// Initialize dependency injection container
	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Add OpenAPI validation if schema file is available
	schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH")
	if schemaPath == "" {
		schemaPath = "api/openapi.yaml"
	}
	r.AddOpenAPIValidation(schemaPath)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a signal
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline to wait for
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
