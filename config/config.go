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
	JWT      JWTConfig
	AWS      AWSConfig
	Upload   UploadConfig
	Store    StoreConfig
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
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/venue?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings. An empty Addr disables event publishing.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds the fallback bearer token settings for worlds without their own secret.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// AWSConfig holds AWS credentials and the bucket uploaded files are stored in.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	FilesBucket     string
	PublicBaseURL   string // optional CDN / custom domain in front of the bucket
}

// UploadConfig holds the file ingestion policy.
type UploadConfig struct {
	MaxSize            int64
	ScheduleMaxSize    int64
	AllowedExtensions  []string
	ImageExtensions    []string
	ScheduleExtensions []string
	// BestEffortResize ignores unparseable width/height form values instead of rejecting the upload.
	BestEffortResize bool
	JPEGQuality      int
	MaxImagePixels   int
}

// StoreConfig selects the poll store backend.
type StoreConfig struct {
	Driver string // "postgres" or "memory"
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

// DefaultUpload returns the stock ingestion policy: 10 MiB uploads, 2 MiB schedule imports.
func DefaultUpload() UploadConfig {
	return UploadConfig{
		MaxSize:            10 * 1024 * 1024,
		ScheduleMaxSize:    2 * 1024 * 1024,
		AllowedExtensions:  []string{".png", ".jpg", ".jpeg", ".gif", ".pdf", ".svg", ".mp4", ".webm", ".mp3"},
		ImageExtensions:    []string{".png", ".jpg", ".jpeg", ".gif"},
		ScheduleExtensions: []string{".xlsx"},
		BestEffortResize:   true,
		JPEGQuality:        95,
		MaxImagePixels:     89478485,
	}
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxConns := getEnvInt("DB_MAX_CONNS", 0)

	upload := DefaultUpload()
	upload.MaxSize = getEnvInt64("UPLOAD_MAX_SIZE", upload.MaxSize)
	upload.ScheduleMaxSize = getEnvInt64("SCHEDULE_MAX_SIZE", upload.ScheduleMaxSize)
	if v := splitTrim(getEnv("UPLOAD_ALLOWED_EXTENSIONS", ""), ","); len(v) > 0 {
		upload.AllowedExtensions = normalizeExtensions(v)
	}
	if v := splitTrim(getEnv("UPLOAD_IMAGE_EXTENSIONS", ""), ","); len(v) > 0 {
		upload.ImageExtensions = normalizeExtensions(v)
	}
	upload.BestEffortResize = getEnvBool("UPLOAD_BEST_EFFORT_RESIZE", upload.BestEffortResize)
	upload.JPEGQuality = getEnvInt("UPLOAD_JPEG_QUALITY", upload.JPEGQuality)
	upload.MaxImagePixels = getEnvInt("UPLOAD_MAX_IMAGE_PIXELS", upload.MaxImagePixels)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "venue"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", "change-me-in-production"),
			Issuer:   getEnv("JWT_ISSUER", ""),
			Audience: getEnv("JWT_AUDIENCE", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			FilesBucket:     getEnv("AWS_S3_FILES_BUCKET", "venue-files-bucket"),
			PublicBaseURL:   getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
		},
		Upload: upload,
		Store: StoreConfig{
			Driver: getEnv("POLL_STORE_DRIVER", "postgres"),
		},
	}
	if cfg.Store.Driver != "postgres" && cfg.Store.Driver != "memory" {
		return nil, fmt.Errorf("unknown POLL_STORE_DRIVER %q", cfg.Store.Driver)
	}
	return cfg, nil
}

// normalizeExtensions lower-cases extensions and makes sure they carry the leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
