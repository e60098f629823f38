package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Storage     StorageConfig
	Email       EmailConfig
	CORS        CORSConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Jobs        JobsConfig
	Webhook     WebhookConfig
	Environment string
}

type ServerConfig struct {
	Host         string
	Port         int
	BaseURL      string
	MaxBodyBytes int64
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	AutoMigrate    bool
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	Issuer    string
}

type RateLimitConfig struct {
	PublicPerMinute   int
	StaffPerMinute    int
	TrustedProxyCIDRs []string
}

// StorageConfig describes where uploaded files go. Remote storage (Cloudflare
// R2 or any S3-compatible endpoint) is used when Remote reports true;
// otherwise files land in UploadDir.
type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	AccountID       string
	Endpoint        string
	Bucket          string
	PublicBaseURL   string
	UploadDir       string
	MaxUploadBytes  int64
	PresignTTL      time.Duration
}

// Remote reports whether all object storage credentials are present.
func (s StorageConfig) Remote() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Endpoint != "" && s.Bucket != ""
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	ResendAPIKey string
	ResendFrom   string
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	ServiceName  string
	SampleRate   float64
}

type JobsConfig struct {
	Enabled             bool
	EmailMaxAttempts    int
	ReconcileInterval   time.Duration
	ReportArchiveWindow time.Duration
}

type WebhookConfig struct {
	ClerkSecret string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the process win.
func Load() (Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	accountID := getEnvAny([]string{"R2_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID"}, "")
	endpoint := getEnv("R2_ENDPOINT", "")
	if endpoint == "" && accountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	smtpUser := getEnv("SMTP_USER", "")

	cfg := Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("PORT", getEnvInt("SERVER_PORT", 8001)),
			BaseURL:      getEnv("SERVER_BASE_URL", "http://localhost:8001"),
			MaxBodyBytes: int64(getEnvInt("SERVER_MAX_BODY_MB", 25)) << 20,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			AutoMigrate:    getEnvBool("DATABASE_AUTO_MIGRATE", env == "development"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			Issuer:    getEnv("JWT_ISSUER", "prepsphere"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   getEnvInt("RATE_LIMIT_PUBLIC", 120),
			StaffPerMinute:    getEnvInt("RATE_LIMIT_STAFF", 0),
			TrustedProxyCIDRs: splitList(getEnv("RATE_LIMIT_TRUSTED_PROXIES", "")),
		},
		Storage: StorageConfig{
			AccessKeyID:     getEnvAny([]string{"R2_ACCESS_KEY_ID", "CLOUDFLARE_ACCESS_KEY_ID"}, ""),
			SecretAccessKey: getEnvAny([]string{"R2_SECRET_ACCESS_KEY", "CLOUDFLARE_SECRET_ACCESS_KEY"}, ""),
			AccountID:       accountID,
			Endpoint:        strings.TrimRight(endpoint, "/"),
			Bucket:          getEnvAny([]string{"R2_BUCKET_NAME", "CLOUDFLARE_BUCKET_NAME"}, ""),
			PublicBaseURL:   strings.TrimRight(getEnv("R2_PUBLIC_BASE_URL", ""), "/"),
			UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadBytes:  int64(getEnvInt("UPLOAD_MAX_KB", 500)) * 1024,
			PresignTTL:      time.Duration(getEnvInt("R2_PRESIGN_SECONDS", 600)) * time.Second,
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", true),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     smtpUser,
			SMTPPassword: getEnvAny([]string{"SMTP_PASS", "SMTP_PASSWORD"}, ""),
			From:         getEnv("SMTP_FROM", smtpUser),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			ResendFrom:   getEnv("RESEND_FROM", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "otlp"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "prepsphere-server"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Jobs: JobsConfig{
			Enabled:             getEnvBool("JOBS_ENABLED", true),
			EmailMaxAttempts:    getEnvInt("JOB_RETRY_EMAIL", 5),
			ReconcileInterval:   time.Duration(getEnvInt("JOB_RECONCILE_UPLOADS_HOURS", 24)) * time.Hour,
			ReportArchiveWindow: time.Duration(getEnvInt("JOB_REPORT_ARCHIVE_HOURS", 24*7)) * time.Hour,
		},
		Webhook: WebhookConfig{
			ClerkSecret: getEnv("CLERK_WEBHOOK_SECRET", ""),
		},
		Environment: env,
	}

	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	c.CORS.AllowAllOrigins = c.Environment != "production" && len(c.CORS.AllowedOrigins) == 0
}

// Validate checks the invariants that Load and LoadFile both rely on.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" {
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
		}
		if len(c.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must be set in production")
		}
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_KB must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAny(keys []string, fallback string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
