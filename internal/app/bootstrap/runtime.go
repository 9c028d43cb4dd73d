package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/tutoring-booking/internal/appointments"
	appconfig "github.com/wolfman30/tutoring-booking/internal/config"
	httpmiddleware "github.com/wolfman30/tutoring-booking/internal/http/middleware"
	"github.com/wolfman30/tutoring-booking/internal/notify"
	"github.com/wolfman30/tutoring-booking/pkg/logging"
)

// AppointmentStore is the store selected by STORE_BACKEND plus its shutdown hook.
type AppointmentStore struct {
	Store  appointments.Store
	Lister appointments.Lister
	Close  func(ctx context.Context) error
}

type storeBackend interface {
	appointments.Store
	appointments.Lister
}

// BuildStore wires the configured appointment store. Network backends do
// not dial here; the first request connects.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*AppointmentStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case appconfig.StoreMongo:
		store := appointments.NewMongoStore(appointments.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		}, logger)
		logger.Info("appointment store: mongodb", "database", cfg.MongoDatabase, "collection", cfg.MongoCollection)
		return wrapStore(store, store.Close), nil

	case appconfig.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: postgres pool: %w", err)
		}
		logger.Info("appointment store: postgres")
		return wrapStore(appointments.NewPostgresStore(pool), func(context.Context) error {
			pool.Close()
			return nil
		}), nil

	case appconfig.StoreMemory:
		logger.Warn("appointment store: in-memory, bookings are lost on restart")
		return wrapStore(appointments.NewInMemoryRepository(), nil), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}

func wrapStore(s storeBackend, closeFn func(context.Context) error) *AppointmentStore {
	if closeFn == nil {
		closeFn = func(context.Context) error { return nil }
	}
	return &AppointmentStore{Store: s, Lister: s, Close: closeFn}
}

// BuildNotifier returns the configured email client and its provider name.
func BuildNotifier(cfg *appconfig.Config, logger *logging.Logger) (appointments.Notifier, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case appconfig.EmailBrevo:
		client := notify.NewBrevoClient(notify.BrevoConfig{
			APIKey:      cfg.BrevoAPIKey,
			TemplateID:  cfg.BrevoTemplateID,
			Recipient:   cfg.RecipientEmail,
			SenderEmail: cfg.SenderEmail,
			SenderName:  cfg.SenderName,
			BaseURL:     cfg.BrevoBaseURL,
		}, logger)
		if client == nil {
			return nil, "", fmt.Errorf("bootstrap: brevo api key missing")
		}
		return client, cfg.EmailProvider, nil

	case appconfig.EmailSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:     cfg.SendGridAPIKey,
			TemplateID: cfg.SendGridTemplateID,
			Recipient:  cfg.RecipientEmail,
			FromEmail:  cfg.SenderEmail,
			FromName:   cfg.SenderName,
		}, logger)
		if sender == nil {
			return nil, "", fmt.Errorf("bootstrap: sendgrid api key missing")
		}
		return sender, cfg.EmailProvider, nil

	case appconfig.EmailStub:
		logger.Warn("email provider: stub, nobody will be notified of bookings")
		return notify.NewStubSender(logger), cfg.EmailProvider, nil
	}
	return nil, "", fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRateLimiter shares the submission budget through Redis when a client
// is given and falls back to a per-process limiter otherwise. Zero
// RateLimitPerMin disables limiting.
func BuildRateLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if cfg == nil || cfg.RateLimitPerMin <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("rate limiting via redis", "per_minute", cfg.RateLimitPerMin)
		return httpmiddleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMin+cfg.RateLimitBurst, time.Minute)
	}
	logger.Info("rate limiting in process", "per_minute", cfg.RateLimitPerMin, "burst", cfg.RateLimitBurst)
	return httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitPerMin, cfg.RateLimitBurst)
}
