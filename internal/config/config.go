package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode  string // Set via flag, not env
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// MongoDB
	MongoURI    string `env:"MONGO_URI,required"`
	MongoDbName string `env:"MONGO_DB_NAME,default=swapable"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	// Identity provider tokens
	JwtSecret       string        `env:"JWT_SECRET,required"`
	IdentitySyncTTL time.Duration `env:"IDENTITY_SYNC_TTL,default=1h"`

	// Server
	ApiPort        string   `env:"API_PORT,default=8080"`
	ServiceApiPort string   `env:"SERVICE_API_PORT,default=12345"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=*"`

	// Offers
	OfferExpiry time.Duration `env:"OFFER_EXPIRY,default=168h"`

	// Email
	SmtpHost        string `env:"SMTP_HOST"`
	SmtpPort        int    `env:"SMTP_PORT,default=587"`
	SmtpUsername    string `env:"SMTP_USERNAME"`
	SmtpPassword    string `env:"SMTP_PASSWORD"`
	SmtpFromAddress string `env:"SMTP_FROM_ADDRESS,default=Swapable <noreply@swapable.example.com>"`
	MockServices    bool   `env:"MOCK_SERVICES,default=false"`
	LogEmails       string `env:"LOG_EMAILS"`

	// AWS S3
	AwsAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AwsRegion          string `env:"AWS_REGION"`
	AwsS3Bucket        string `env:"AWS_S3_BUCKET"`
	ImageBaseS3URL     string `env:"IMAGE_BASE_S3_URL"`
	ImageMaxDimension  int    `env:"IMAGE_MAX_DIMENSION,default=2048"`
	ImageMaxSizeMB     int    `env:"IMAGE_MAX_SIZE_MB,default=10"`

	// App Defaults
	AppName     string        `env:"APP_NAME,default=Swapable"`
	AppURL      string        `env:"APP_URL,default=http://localhost:3000"`
	GetCacheTTL time.Duration `env:"GET_CACHE_TTL,default=60s"`

	// Events and tracing
	NatsURL      string `env:"NATS_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int `env:"RATE_LIMIT_SOFT_BUCKET_SIZE,default=2"`
	RateLimitSoftRefillRate int `env:"RATE_LIMIT_SOFT_REFILL_RATE,default=1"` // tokens per second
	RateLimitHardBucketSize int `env:"RATE_LIMIT_HARD_BUCKET_SIZE,default=8"`
	RateLimitHardRefillRate int `env:"RATE_LIMIT_HARD_REFILL_RATE,default=4"` // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(ctx context.Context, runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	return load(ctx, runMode, envconfig.OsLookuper())
}

func load(ctx context.Context, runMode string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.RunMode = runMode

	if cfg.OfferExpiry <= 0 {
		return nil, fmt.Errorf("invalid OFFER_EXPIRY: must be positive, got %s", cfg.OfferExpiry)
	}
	if cfg.ImageMaxDimension <= 0 {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %d", cfg.ImageMaxDimension)
	}
	if cfg.ImageMaxSizeMB <= 0 {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %d", cfg.ImageMaxSizeMB)
	}

	return cfg, nil
}
