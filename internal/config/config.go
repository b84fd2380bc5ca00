// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the history database, exports and logs (always absolute)
	APIBaseURL string // Triage backend REST base URL (e.g. "http://localhost:5000")
	PushURL    string // Triage backend websocket endpoint (e.g. "ws://localhost:5000/ws")
	LogLevel   string
	Port       int
	DevMode    bool

	// Synchronization knobs
	ReconnectDelay   time.Duration // Delay between push-channel reconnect attempts (default 5s)
	PollInterval     time.Duration // Periodic snapshot refresh interval (default 30s)
	RecentWindowSize int           // Bound on the recent-activity feed (default 5)

	// Notification lifetime before automatic removal
	NotificationTTL time.Duration

	// Optional best-effort secondary notification channel
	NotifyWebhookURL string

	// Optional S3-compatible export upload
	Export ExportConfig
}

// ExportConfig holds settings for snapshot artifact uploads.
// Uploads are disabled when Bucket is empty; local artifacts are always written.
type ExportConfig struct {
	Bucket    string
	Endpoint  string // S3-compatible endpoint URL (empty = AWS default)
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether export uploads are configured.
func (e ExportConfig) Enabled() bool {
	return e.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRIAGEWATCH_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		APIBaseURL:       getEnv("TRIAGE_API_URL", "http://localhost:5000"),
		PushURL:          getEnv("TRIAGE_PUSH_URL", "ws://localhost:5000/ws"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("PORT", 8090),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		ReconnectDelay:   getEnvAsMillis("RECONNECT_DELAY_MS", 5000),
		PollInterval:     getEnvAsMillis("POLL_INTERVAL_MS", 30000),
		RecentWindowSize: getEnvAsInt("RECENT_WINDOW_SIZE", 5),
		NotificationTTL:  getEnvAsMillis("NOTIFICATION_TTL_MS", 5000),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		Export: ExportConfig{
			Bucket:    getEnv("EXPORT_BUCKET", ""),
			Endpoint:  getEnv("EXPORT_ENDPOINT", ""),
			Region:    getEnv("EXPORT_REGION", "auto"),
			AccessKey: getEnv("EXPORT_ACCESS_KEY", ""),
			SecretKey: getEnv("EXPORT_SECRET_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RecentWindowSize < 1 {
		return fmt.Errorf("recent window size must be at least 1, got %d", c.RecentWindowSize)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
