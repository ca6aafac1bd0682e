package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth. Tokens are issued by the external identity provider.
	JWTSecret  string
	AppEnv     string
	DevUserID  string
	AdminToken string

	// Server
	Port               string
	CORSOrigins        string
	RateLimitPerMinute int

	// Uploads
	UploadDir       string
	UploadURLPrefix string
	UploadMaxBytes  int64
	S3Bucket        string
	S3Region        string
	S3PublicURL     string

	// Stats cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// Logging / error tracking
	LogLevel         string
	LogFile          string
	LogRetentionDays int
	SentryDSN        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "cycletrack_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		AppEnv:     getEnv("APP_ENV", "production"),
		DevUserID:  getEnv("DEV_USER_ID", "dev-user-123"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		Port:               getEnv("PORT", "8080"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		RateLimitPerMinute: parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "120"), 120),

		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix: strings.TrimRight(getEnv("UPLOAD_URL_PREFIX", "/uploads"), "/"),
		UploadMaxBytes:  int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "5242880"), 5*1024*1024)),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", getEnv("AWS_REGION", "")),
		S3PublicURL:     strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		StatsCacheTTL: parseDuration(getEnv("STATS_CACHE_TTL", "5m")),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
		SentryDSN:        getEnv("SENTRY_DSN", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// IsDevelopment enables the built-in dev user instead of JWT verification.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
