package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTAccessExpiry time.Duration
	DebounceWindow  time.Duration
	FieldCryptKey   string
	GeoIPDatabase   string
	GoogleClientID  string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	accessExpiry := 24 * time.Hour
	if exp := os.Getenv("JWT_ACCESS_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			accessExpiry = parsed
		}
	}

	debounceWindow := 10 * time.Second
	if win := os.Getenv("TRACK_DEBOUNCE_WINDOW"); win != "" {
		if parsed, err := time.ParseDuration(win); err == nil {
			debounceWindow = parsed
		}
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=pixeltrace port=5432 sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry: accessExpiry,
		DebounceWindow:  debounceWindow,
		FieldCryptKey:   getEnv("FIELD_CRYPT_KEY", ""),
		GeoIPDatabase:   getEnv("GEOIP_DATABASE", ""),
		GoogleClientID:  getEnv("GOOGLE_CLIENT_ID", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
