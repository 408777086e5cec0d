package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	ServiceName       string
	AuthServerURL     string
	TelemetryEndpoint string
	TelemetryInsecure bool

	AccessTokenExpiry time.Duration
	AccessTokenBytes  int
	ContinueWait      time.Duration
	InteractionExpiry time.Duration

	WebhookURL          string
	WebhookSecret       string
	WebhookTimeout      time.Duration
	WebhookMaxRetry     int
	WebhookBackoff      time.Duration
	WebhookWorkers      int
	WebhookPollInterval time.Duration

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "3006"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServiceName:       getEnv("SERVICE_NAME", "gnap-auth"),
		AuthServerURL:     getEnv("AUTH_SERVER_URL", "http://localhost:3006"),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 10*time.Minute),
		AccessTokenBytes:  getInt("ACCESS_TOKEN_BYTES", 32),
		ContinueWait:      getDuration("CONTINUE_WAIT", 5*time.Second),
		InteractionExpiry: getDuration("INTERACTION_EXPIRY", 10*time.Minute),

		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:      getDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookMaxRetry:     getInt("WEBHOOK_MAX_RETRY", 10),
		WebhookBackoff:      getDuration("WEBHOOK_BACKOFF", 10*time.Second),
		WebhookWorkers:      getInt("WEBHOOK_WORKERS", 1),
		WebhookPollInterval: getDuration("WEBHOOK_POLL_INTERVAL", time.Second),

		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "Signature", "Signature-Input", "Content-Digest"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AccessTokenBytes < 32 {
		cfg.AccessTokenBytes = 32
	}
	cfg.AuthServerURL = strings.TrimRight(cfg.AuthServerURL, "/")

	return cfg, nil
}

// WaitSeconds returns the continuation wait period as whole seconds, as
// advertised to clients in continuation envelopes.
func (c Config) WaitSeconds() int {
	return int(c.ContinueWait / time.Second)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
