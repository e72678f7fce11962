package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/poller"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the console
type Config struct {
	Port           string
	BackendURL     string
	AllowedOrigins []string
	LogLevel       string

	// Backend client
	RequestTimeout time.Duration
	MaxBatches     int

	// Poll cadences
	Intervals             poller.Intervals
	ConnectivityThreshold int

	// Auth
	SkipAuth      bool
	OIDCIssuerURL string

	// WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables. Poll cadences come
// from the defaults, then TUNING_FILE, then the *_POLL_INTERVAL variables.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8090"),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000/api"), "/"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",
		OIDCIssuerURL:  getEnv("OIDC_ISSUER_URL", ""),
		Intervals:      poller.DefaultIntervals(),
	}

	requestTimeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT", "10"))
	if err != nil || requestTimeout <= 0 {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %q", os.Getenv("REQUEST_TIMEOUT"))
	}
	config.RequestTimeout = time.Duration(requestTimeout) * time.Second

	config.MaxBatches, err = strconv.Atoi(getEnv("MAX_BATCHES", "500"))
	if err != nil || config.MaxBatches < 1 {
		return nil, fmt.Errorf("invalid MAX_BATCHES: %q", os.Getenv("MAX_BATCHES"))
	}

	config.ConnectivityThreshold, err = strconv.Atoi(getEnv("CONNECTIVITY_THRESHOLD", "3"))
	if err != nil || config.ConnectivityThreshold < 1 {
		return nil, fmt.Errorf("invalid CONNECTIVITY_THRESHOLD: %q", os.Getenv("CONNECTIVITY_THRESHOLD"))
	}

	if path := os.Getenv("TUNING_FILE"); path != "" {
		tuning, err := LoadTuning(path)
		if err != nil {
			return nil, err
		}
		tuning.apply(&config.Intervals)
	}

	for _, iv := range []struct {
		key string
		dst *time.Duration
	}{
		{"LIVE_POLL_INTERVAL", &config.Intervals.Live},
		{"HISTORY_POLL_INTERVAL", &config.Intervals.History},
		{"POLICY_POLL_INTERVAL", &config.Intervals.Policies},
	} {
		raw := os.Getenv(iv.key)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid %s: %q", iv.key, raw)
		}
		*iv.dst = d
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
