package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	Env                    string
	DatabaseURL            string
	JWTSecret              string
	AdminAPIKey            string
	BalanceCacheTTL        time.Duration
	RecurringSweepInterval time.Duration
	DeletionSweepInterval  time.Duration
	AuthRateLimit          int
	GeneralRateLimit       int
	AllowedOrigins         []string
	MaxBodySize            int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if env == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
		jwtSecret = "dev-only-insecure-secret"
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string
	if origins != "" {
		allowedOrigins = splitOrigins(origins)
	} else {
		if env == "production" {
			log.Println("[WARNING] ALLOWED_ORIGINS not set in production! Defaulting to '*' which is insecure.")
		}
		allowedOrigins = []string{"*"}
	}

	maxBodySize := int64(1 * 1024 * 1024)
	if sizeStr := os.Getenv("MAX_BODY_SIZE"); sizeStr != "" {
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
			maxBodySize = size
		}
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    env,
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTSecret:              jwtSecret,
		AdminAPIKey:            getEnv("ADMIN_API_KEY", ""),
		BalanceCacheTTL:        getDuration("BALANCE_CACHE_TTL", 5*time.Minute),
		RecurringSweepInterval: getDuration("RECURRING_SWEEP_INTERVAL", time.Hour),
		DeletionSweepInterval:  getDuration("DELETION_SWEEP_INTERVAL", 6*time.Hour),
		AuthRateLimit:          getInt("AUTH_RATE_LIMIT", 10),
		GeneralRateLimit:       getInt("GENERAL_RATE_LIMIT", 100),
		AllowedOrigins:         allowedOrigins,
		MaxBodySize:            maxBodySize,
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("[WARNING] invalid %s %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("[WARNING] invalid %s %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
