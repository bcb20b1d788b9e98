package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Zoom     ZoomConfig
	AWS      AWSConfig
	Schedule ScheduleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/scheduler?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (backfill job queue).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ZoomConfig holds Zoom server-to-server OAuth and webhook settings.
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	// WebhookSecretToken is checked against the Authorization header of
	// every webhook event.
	WebhookSecretToken string
	// WebhookVerificationToken signs the endpoint.url_validation challenge.
	WebhookVerificationToken string
	// WebhookAllowUnverified skips the Authorization check when no secret
	// token is configured. Development only.
	WebhookAllowUnverified bool
	// OAuthURL and APIBaseURL are overridable for tests.
	OAuthURL   string
	APIBaseURL string
}

// AWSConfig holds AWS credentials and the recordings bucket.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	RecordingsBucket string
}

// ScheduleConfig holds batch scheduling defaults.
type ScheduleConfig struct {
	DefaultTimezone        string
	DefaultStartTime       string // "HH:MM"
	DefaultDurationMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/scheduler?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "scheduler"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Zoom: ZoomConfig{
			AccountID:                getEnv("ZOOM_ACCOUNT_ID", ""),
			ClientID:                 getEnv("ZOOM_S2S_CLIENT_ID", ""),
			ClientSecret:             getEnv("ZOOM_S2S_CLIENT_SECRET", ""),
			WebhookSecretToken:       getEnv("ZOOM_WEBHOOK_SECRET_TOKEN", ""),
			WebhookVerificationToken: getEnv("ZOOM_WEBHOOK_VERIFICATION_TOKEN", ""),
			WebhookAllowUnverified:   getEnvBool("ZOOM_WEBHOOK_ALLOW_UNVERIFIED", false),
			OAuthURL:                 getEnv("ZOOM_OAUTH_URL", "https://zoom.us/oauth/token"),
			APIBaseURL:               getEnv("ZOOM_API_BASE_URL", "https://api.zoom.us/v2"),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket: getEnv("AWS_S3_RECORDINGS_BUCKET", "class-recordings-bucket"),
		},
		Schedule: ScheduleConfig{
			DefaultTimezone:        getEnv("SCHEDULE_DEFAULT_TIMEZONE", "Asia/Kolkata"),
			DefaultStartTime:       getEnv("SCHEDULE_DEFAULT_START_TIME", "10:00"),
			DefaultDurationMinutes: getEnvInt("SCHEDULE_DEFAULT_DURATION_MINUTES", 60),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
