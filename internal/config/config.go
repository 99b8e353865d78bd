package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	CookieSecret   string
	StoreTimeout   time.Duration
	AllowedOrigins []string
}

func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		CookieSecret:   getEnv("COOKIE_SECRET", ""),
		StoreTimeout:   getDuration("STORE_TIMEOUT", 5*time.Second),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),
	}

	if !cfg.IsDevelopment() {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.CookieSecret == "" {
			panic("COOKIE_SECRET is required in production")
		}
	}

	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "sqlite3" {
		cfg.DatabaseURL = "offchat.db"
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// getList splits a comma separated value, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
