package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Email providers.
const (
	EmailBrevo    = "brevo"
	EmailSendGrid = "sendgrid"
	EmailStub     = "stub"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	StoreBackend      string
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	RateLimitPerMin   int
	RateLimitBurst    int
	AdminJWTSecret    string
	NotifyTimeout     time.Duration
	CompensateTimeout time.Duration

	// Transactional email
	EmailProvider      string
	BrevoAPIKey        string
	BrevoTemplateID    int
	BrevoTemplateRaw   string
	BrevoBaseURL       string
	SendGridAPIKey     string
	SendGridTemplateID string
	RecipientEmail     string
	SenderEmail        string
	SenderName         string

	// malformed holds values that were set but could not be parsed.
	malformed []error
}

var addressValidator = validator.New()

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	env := &envReader{}
	templateRaw := strings.TrimSpace(getEnv("BREVO_TEMPLATE_ID", ""))
	templateID, _ := strconv.Atoi(templateRaw)

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MaxBodyBytes:       int64(env.asInt("MAX_BODY_BYTES", 10<<20)),

		StoreBackend:      strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreMongo))),
		MongoURI:          getEnv("MONGODB_URI", ""),
		MongoDatabase:     getEnv("MONGODB_DB", ""),
		MongoCollection:   getEnv("MONGODB_COLLECTION", "appointments"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          env.asBool("REDIS_TLS", false),
		RateLimitPerMin:   env.asInt("RATE_LIMIT_PER_MINUTE", 20),
		RateLimitBurst:    env.asInt("RATE_LIMIT_BURST", 5),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		NotifyTimeout:     env.asDuration("NOTIFY_TIMEOUT", 15*time.Second),
		CompensateTimeout: env.asDuration("COMPENSATE_TIMEOUT", 5*time.Second),

		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", EmailBrevo))),
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoTemplateID:    templateID,
		BrevoTemplateRaw:   templateRaw,
		BrevoBaseURL:       getEnv("BREVO_BASE_URL", ""),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridTemplateID: getEnv("SENDGRID_TEMPLATE_ID", ""),
		RecipientEmail:     getEnv("APPOINTMENT_RECIPIENT_EMAIL", ""),
		SenderEmail:        getEnv("EMAIL_SENDER_ADDRESS", ""),
		SenderName:         getEnv("EMAIL_SENDER_NAME", ""),
	}
	cfg.malformed = env.errs
	return cfg
}

// Validate reports every missing or malformed value at once so a bad
// deployment fails at startup instead of on the first booking.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.malformed...)

	switch c.StoreBackend {
	case StoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			errs = append(errs, errors.New("MONGODB_URI is required"))
		}
		if strings.TrimSpace(c.MongoDatabase) == "" {
			errs = append(errs, errors.New("MONGODB_DB is required"))
		}
		if strings.TrimSpace(c.MongoCollection) == "" {
			errs = append(errs, errors.New("MONGODB_COLLECTION must not be empty"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required"))
		}
	case StoreMemory:
		if c.Env == "production" {
			errs = append(errs, errors.New("STORE_BACKEND=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not supported", c.StoreBackend))
	}

	switch c.EmailProvider {
	case EmailBrevo:
		if strings.TrimSpace(c.BrevoAPIKey) == "" {
			errs = append(errs, errors.New("BREVO_API_KEY is required"))
		}
		if c.BrevoTemplateID <= 0 {
			errs = append(errs, fmt.Errorf("BREVO_TEMPLATE_ID must be a positive integer, got %q", c.BrevoTemplateRaw))
		}
	case EmailSendGrid:
		if strings.TrimSpace(c.SendGridAPIKey) == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required"))
		}
		if strings.TrimSpace(c.SendGridTemplateID) == "" {
			errs = append(errs, errors.New("SENDGRID_TEMPLATE_ID is required"))
		}
	case EmailStub:
		if c.Env == "production" {
			errs = append(errs, errors.New("EMAIL_PROVIDER=stub is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER %q is not supported", c.EmailProvider))
	}

	if c.EmailProvider != EmailStub {
		if !validAddress(c.RecipientEmail) {
			errs = append(errs, fmt.Errorf("APPOINTMENT_RECIPIENT_EMAIL must be a valid address, got %q", c.RecipientEmail))
		}
	}
	if c.SenderEmail != "" && !validAddress(c.SenderEmail) {
		errs = append(errs, fmt.Errorf("EMAIL_SENDER_ADDRESS must be a valid address, got %q", c.SenderEmail))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("NOTIFY_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func validAddress(addr string) bool {
	return addressValidator.Var(addr, "required,email") == nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed environment variables and remembers the ones
// that were set but malformed, so Validate can report them.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s must be %s, got %q", key, want, value))
}

// asInt retrieves an environment variable as an integer or returns a default value
func (r *envReader) asInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.invalid(key, valueStr, "an integer")
		return defaultValue
	}
	return value
}

// asBool retrieves an environment variable as a boolean or returns a default value
func (r *envReader) asBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.invalid(key, valueStr, "a boolean")
		return defaultValue
	}
	return value
}

func (r *envReader) asDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		r.invalid(key, valueStr, "a duration such as 15s")
		return defaultValue
	}
	return value
}
