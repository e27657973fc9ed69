package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Remote kiosk backend
	RemoteBaseURL string
	RemoteAPIKey  string

	// Camera
	CameraSnapshotURL string

	// Supabase (optional: artifact publishing + session events)
	SupabaseURL           string
	SupabaseKey           string
	SupabaseStorageBucket string

	// Admin API
	AdminJWTSecret string

	// Database (optional: durable order ledger)
	DatabaseURL string

	// Pricing (minor currency units)
	PriceDownload int
	PricePrint    int

	// Payment polling
	PaymentPollInterval time.Duration
	PaymentMaxWait      time.Duration

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	// Local development keeps settings in a .env file; missing is fine.
	_ = godotenv.Load()

	cfg := &Config{
		RemoteBaseURL: getEnv("REMOTE_BASE_URL", ""),
		RemoteAPIKey:  getEnv("REMOTE_API_KEY", ""),

		CameraSnapshotURL: getEnv("CAMERA_SNAPSHOT_URL", ""),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseKey:           getEnv("SUPABASE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "kiosk-artifacts"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		PriceDownload: getEnvInt("PRICE_DOWNLOAD", 300),
		PricePrint:    getEnvInt("PRICE_PRINT", 1000),

		PaymentPollInterval: getEnvDuration("PAYMENT_POLL_INTERVAL", 2*time.Second),
		PaymentMaxWait:      getEnvDuration("PAYMENT_MAX_WAIT", 5*time.Minute),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if c.PriceDownload <= 0 || c.PricePrint <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.PaymentPollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
