package router

import (
	"time"

	"github.com/gin-gonic/gin"

	chatbotapi "github.com/AntoinePinto/docu-talk/chatbot/api"
	chatbotservice "github.com/AntoinePinto/docu-talk/chatbot/service"
	conversationapi "github.com/AntoinePinto/docu-talk/conversation/api"
	conversationws "github.com/AntoinePinto/docu-talk/conversation/ws"
	creationapi "github.com/AntoinePinto/docu-talk/creation/api"
	"github.com/AntoinePinto/docu-talk/pkg/config"
	"github.com/AntoinePinto/docu-talk/pkg/di"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
	userapi "github.com/AntoinePinto/docu-talk/user/api"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	// Use the container's logger
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Request and trace identifiers
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.ContextPropagationMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	// Create rate limiter with default options
	rateLimiter := middleware.NewRateLimiter(container.Logger)

	// Apply rate limiting to all routes
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	// Add CORS middleware
	r.Engine.Use(corsMiddleware())

	c := r.Container

	userHandler := userapi.NewUserHandler(c.UserService, c.Ledger, r.Logger)
	chatbotHandler := chatbotapi.NewChatbotHandler(c.ChatbotService, r.Config.Limits.MaxIconFileSize, r.Logger)
	chatHandler := conversationapi.NewChatHandler(c.ChatService, c.ChatbotService, c.Ledger, c.Predictor, r.Logger)
	creationHandler := creationapi.NewCreationHandler(c.CreationService, c.Ledger, c.Predictor, chatbotservice.Limits{
		MaxDocsPerChatbot:  r.Config.Limits.MaxDocsPerChatbot,
		MaxPagesPerChatbot: r.Config.Limits.MaxPagesPerChatbot,
	}, r.Logger)

	userapi.RegisterUserRoutes(r.Engine, userHandler, c.JWTService, r.Logger)
	chatbotapi.RegisterChatbotRoutes(r.Engine, chatbotHandler, c.JWTService, r.Logger)
	conversationapi.RegisterConversationRoutes(r.Engine, chatHandler, c.JWTService, r.Logger)
	creationapi.RegisterCreationRoutes(r.Engine, creationHandler, c.JWTService, r.Logger)

	// WebSocket transport for ask sessions
	wsServer := conversationws.NewServer(c.ChatService, c.ChatbotService, c.JWTService, r.Logger)
	conversationws.RegisterRoutes(r.Engine, wsServer)

	r.setupHealthRoutes()
}

// Enhance CORS middleware to explicitly allow WebSocket-specific headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		if origin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
