package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret      string
		ExpiryHours time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Billing converts raw producer usage into user-facing credits
	Billing struct {
		// CreditExchangeRate converts a dollar price into displayed credits
		CreditExchangeRate decimal.Decimal
		// UsageMultiplier amplifies the raw token count into the billable
		// quantity; a single constant for every operation type
		UsageMultiplier int64
		// ModelRates maps a model alias to its per-unit dollar rate
		ModelRates map[string]decimal.Decimal
		// Period allowances in dollars, granted on account creation
		UserPeriodDollarAmount  decimal.Decimal
		GuestPeriodDollarAmount decimal.Decimal
	}

	// Models maps the public aliases to provider model names
	Models struct {
		Basic   string
		Premium string
	}

	// Limits enforced before a creation/add-document session starts
	Limits struct {
		MaxDocsPerChatbot  int
		MaxPagesPerChatbot int
		MaxIconFileSize    int64
	}

	// OpenAI provider settings
	OpenAI struct {
		APIKey  string
		BaseURL string
	}

	// Redis settings (optional, predictor sample store)
	Redis struct {
		URL string
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "docu-talk")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.ExpiryHours = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 50<<20) // 50MB, PDF uploads

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Billing config
		instance.Billing.CreditExchangeRate = getEnvDecimal("CREDIT_EXCHANGE_RATE", decimal.NewFromInt(100))
		instance.Billing.UsageMultiplier = int64(getEnvInt("USAGE_MULTIPLIER", 4))
		instance.Billing.ModelRates = map[string]decimal.Decimal{
			"basic":   getEnvDecimal("MODEL_RATE_BASIC", decimal.RequireFromString("0.0000002")),
			"premium": getEnvDecimal("MODEL_RATE_PREMIUM", decimal.RequireFromString("0.0000025")),
		}
		instance.Billing.UserPeriodDollarAmount = getEnvDecimal("USER_PERIOD_DOLLAR_AMOUNT", decimal.NewFromInt(1))
		instance.Billing.GuestPeriodDollarAmount = getEnvDecimal("GUEST_PERIOD_DOLLAR_AMOUNT", decimal.RequireFromString("0.2"))

		// Model aliases
		instance.Models.Basic = getEnvString("BASIC_MODEL_NAME", "gpt-4o-mini")
		instance.Models.Premium = getEnvString("PREMIUM_MODEL_NAME", "gpt-4o")

		// Limits
		instance.Limits.MaxDocsPerChatbot = getEnvInt("MAX_NB_DOC_PER_CHATBOT", 10)
		instance.Limits.MaxPagesPerChatbot = getEnvInt("MAX_NB_PAGES_PER_CHATBOT", 200)
		instance.Limits.MaxIconFileSize = getEnvInt64("MAX_ICON_FILE_SIZE", 1<<20)

		// OpenAI provider
		instance.OpenAI.APIKey = getEnvString("OPENAI_API_KEY", "")
		instance.OpenAI.BaseURL = getEnvString("OPENAI_BASE_URL", "")

		// Redis
		instance.Redis.URL = getEnvString("REDIS_URL", "")

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// ModelNames returns the alias-to-provider-model mapping given to the
// answer producer.
func (c *Config) ModelNames() map[string]string {
	return map[string]string{
		"basic":   c.Models.Basic,
		"premium": c.Models.Premium,
	}
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
