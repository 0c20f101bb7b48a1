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
	Database      DatabaseConfig
	Server        ServerConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Email         EmailConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	StatementTimeout  time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SessionSecret   string
	SessionTTL      time.Duration
	CookieName      string
	CookieDomain    string
	CookieSameSite  string
	CleanupInterval time.Duration
	BcryptCost      int
	OTPTTL          time.Duration
	OTPBcryptCost   int
	TimingMinDelay  time.Duration
	TimingJitter    time.Duration
}

type RateLimitConfig struct {
	OTPRequests   int
	OTPWindow     time.Duration
	LoginRequests int
	LoginWindow   time.Duration
}

type EmailConfig struct {
	Provider     string // ses, resend or log
	FromAddress  string
	AWSRegion    string
	ResendAPIKey string
	QueueSize    int
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
}

type StorageConfig struct {
	Bucket           string
	Region           string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	KeyPrefix        string
	MaxFileSize      int64
	MaxFiles         int
	MaxAvatarSize    int64
	UploadParallel   int
	OperationTimeout time.Duration
}

type ObservabilityConfig struct {
	SentryDSN string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "cloud_storage"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			StatementTimeout:  getEnvAsDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "5000"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret:   sessionSecret,
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 48*time.Hour),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "sid"),
			CookieDomain:    getEnv("COOKIE_DOMAIN", ""),
			CookieSameSite:  getEnv("COOKIE_SAMESITE", "lax"),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
			BcryptCost:      getEnvAsInt("BCRYPT_COST", 12),
			OTPTTL:          getEnvAsDuration("OTP_TTL", 10*time.Minute),
			OTPBcryptCost:   getEnvAsInt("OTP_BCRYPT_COST", 10),
			TimingMinDelay:  getEnvAsDuration("AUTH_TIMING_MIN_DELAY", 300*time.Millisecond),
			TimingJitter:    getEnvAsDuration("AUTH_TIMING_JITTER", 100*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			OTPRequests:   getEnvAsInt("OTP_RATE_LIMIT_REQUESTS", 5),
			OTPWindow:     getEnvAsDuration("OTP_RATE_LIMIT_WINDOW", 10*time.Minute),
			LoginRequests: getEnvAsInt("LOGIN_RATE_LIMIT_REQUESTS", 10),
			LoginWindow:   getEnvAsDuration("LOGIN_RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			FromAddress:  getEnv("EMAIL_FROM", "no-reply@localhost"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			QueueSize:    getEnvAsInt("EMAIL_QUEUE_SIZE", 256),
			Workers:      getEnvAsInt("EMAIL_WORKERS", 2),
			MaxAttempts:  getEnvAsInt("EMAIL_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvAsDuration("EMAIL_RETRY_BACKOFF", 2*time.Second),
		},
		Storage: StorageConfig{
			Bucket:           getEnv("S3_BUCKET", ""),
			Region:           getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint:         getEnv("S3_ENDPOINT", ""),
			AccessKey:        getEnv("S3_ACCESS_KEY", ""),
			SecretKey:        getEnv("S3_SECRET_KEY", ""),
			KeyPrefix:        getEnv("S3_KEY_PREFIX", "cloud-storage"),
			MaxFileSize:      getEnvAsInt64("MAX_FILE_SIZE", 10<<20),
			MaxFiles:         getEnvAsInt("MAX_FILES_PER_UPLOAD", 10),
			MaxAvatarSize:    getEnvAsInt64("MAX_AVATAR_SIZE", 2<<20),
			UploadParallel:   getEnvAsInt("UPLOAD_PARALLELISM", 4),
			OperationTimeout: getEnvAsDuration("STORAGE_TIMEOUT", 60*time.Second),
		},
		Observability: ObservabilityConfig{
			SentryDSN: getEnv("SENTRY_DSN", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Email.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether cookies must be marked Secure.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// validateSessionSecret enforces minimum strength for the cookie signing key
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *EmailConfig) validate() error {
	switch c.Provider {
	case "log", "ses":
		return nil
	case "resend":
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
		return nil
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q (want ses, resend or log)", c.Provider)
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
