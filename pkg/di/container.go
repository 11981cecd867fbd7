package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/AntoinePinto/docu-talk/ai"
	billingrepo "github.com/AntoinePinto/docu-talk/billing/repository"
	billingservice "github.com/AntoinePinto/docu-talk/billing/service"
	chatbotrepo "github.com/AntoinePinto/docu-talk/chatbot/repository"
	chatbotservice "github.com/AntoinePinto/docu-talk/chatbot/service"
	conversationrepo "github.com/AntoinePinto/docu-talk/conversation/repository"
	conversationservice "github.com/AntoinePinto/docu-talk/conversation/service"
	creationservice "github.com/AntoinePinto/docu-talk/creation/service"
	"github.com/AntoinePinto/docu-talk/mailing"
	"github.com/AntoinePinto/docu-talk/pkg/cache"
	"github.com/AntoinePinto/docu-talk/pkg/config"
	"github.com/AntoinePinto/docu-talk/pkg/health"
	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/secrets"
	"github.com/AntoinePinto/docu-talk/predictor"
	"github.com/AntoinePinto/docu-talk/shared/redis"
	userrepo "github.com/AntoinePinto/docu-talk/user/repository"
	userservice "github.com/AntoinePinto/docu-talk/user/service"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logger.Logger

	JWTService *jwt.Service
	Cache      *cache.Cache
	Mailer     mailing.Mailer
	Producer   ai.Producer
	Predictor  *predictor.Predictor
	Health     *health.Checker

	Ledger          *billingservice.Ledger
	ChatbotService  *chatbotservice.ChatbotService
	ChatService     *conversationservice.ChatService
	CreationService *creationservice.CreationService
	UserService     *userservice.UserService
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	// Secrets override env-provided keys when a Vault is configured
	jwtSecret := secrets.GetSecretWithDefault(context.Background(), "JWT_SECRET", cfg.JWT.Secret)
	openAIKey := secrets.GetSecretWithDefault(context.Background(), "OPENAI_API_KEY", cfg.OpenAI.APIKey)

	jwtService := jwt.NewService(jwtSecret, cfg.JWT.ExpiryHours)
	accessCache := cache.NewCache()
	mailer := mailing.NewLogMailer(log)

	producer := ai.NewOpenAIProducer(
		ai.NewClient(openAIKey, cfg.OpenAI.BaseURL),
		cfg.ModelNames(),
		log,
	)

	// Redis is optional; the predictor degrades to in-memory samples
	var sampleStore predictor.SampleStore
	redisStore := redis.NewSampleStore(cfg.Redis.URL)
	if redisStore != nil {
		sampleStore = redisStore
	}
	pred := predictor.New(sampleStore, log)

	checker := health.NewChecker(log, time.Minute)
	checker.RegisterDatabaseCheck(func() error {
		return db.Exec("SELECT 1").Error
	})
	if redisStore != nil {
		checker.RegisterCheck("redis", func() (health.Status, string, error) {
			if err := redisStore.Ping(context.Background()); err != nil {
				return health.StatusDegraded, "Predictor sample store unreachable", err
			}
			return health.StatusUp, "Predictor sample store is reachable", nil
		})
	}
	checker.Start()

	ledger := billingservice.NewLedger(
		billingrepo.NewGormUsageRepository(db),
		billingservice.LedgerConfig{
			ModelRates:         cfg.Billing.ModelRates,
			UsageMultiplier:    cfg.Billing.UsageMultiplier,
			CreditExchangeRate: cfg.Billing.CreditExchangeRate,
		},
		log,
	)

	chatbotSvc := chatbotservice.NewChatbotService(
		chatbotrepo.NewGormChatbotRepository(db),
		accessCache,
		mailer,
		chatbotservice.Limits{
			MaxDocsPerChatbot:  cfg.Limits.MaxDocsPerChatbot,
			MaxPagesPerChatbot: cfg.Limits.MaxPagesPerChatbot,
		},
		log,
	)

	chatSvc := conversationservice.NewChatService(
		conversationrepo.NewGormConversationRepository(db),
		chatbotSvc,
		producer,
		ledger,
		pred,
		log,
	)

	creationSvc := creationservice.NewCreationService(
		producer,
		ledger,
		chatbotSvc,
		pred,
		log,
	)

	userSvc := userservice.NewUserService(
		userrepo.NewGormUserRepository(db),
		ledger,
		jwtService,
		mailer,
		userservice.Allowances{
			User:  cfg.Billing.UserPeriodDollarAmount,
			Guest: cfg.Billing.GuestPeriodDollarAmount,
		},
		log,
	)

	return &Container{
		DB:              db,
		Config:          cfg,
		Logger:          log,
		JWTService:      jwtService,
		Cache:           accessCache,
		Mailer:          mailer,
		Producer:        producer,
		Predictor:       pred,
		Health:          checker,
		Ledger:          ledger,
		ChatbotService:  chatbotSvc,
		ChatService:     chatSvc,
		CreationService: creationSvc,
		UserService:     userSvc,
	}, nil
}
