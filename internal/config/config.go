package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	OAuth struct {
		ClientID  string
		IssuerURL string
	}

	Nylas struct {
		BaseURL      string
		TokenURL     string
		ClientID     string
		ClientSecret string
	}

	TokenEncryptionKey string

	Sync struct {
		Schedule      string
		LookbackDays  int
		LookaheadDays int
	}

	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.OAuth.ClientID = os.Getenv("APP_OAUTH_CLIENT_ID")
	cfg.OAuth.IssuerURL = os.Getenv("APP_OAUTH_ISSUER_URL")

	cfg.Nylas.BaseURL = strings.TrimRight(getenvDefault("APP_NYLAS_BASE_URL", "https://api.us.nylas.com/v3"), "/")
	cfg.Nylas.TokenURL = getenvDefault("APP_NYLAS_TOKEN_URL", cfg.Nylas.BaseURL+"/connect/token")
	cfg.Nylas.ClientID = os.Getenv("APP_NYLAS_CLIENT_ID")
	cfg.Nylas.ClientSecret = os.Getenv("APP_NYLAS_CLIENT_SECRET")

	cfg.TokenEncryptionKey = os.Getenv("APP_TOKEN_ENCRYPTION_KEY")

	cfg.Sync.Schedule = os.Getenv("APP_SYNC_SCHEDULE")
	cfg.Sync.LookbackDays = getenvInt("APP_SYNC_LOOKBACK_DAYS", 7)
	cfg.Sync.LookaheadDays = getenvInt("APP_SYNC_LOOKAHEAD_DAYS", 30)

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.OAuth.ClientID == "" || cfg.OAuth.IssuerURL == "" {
		return nil, errors.New("APP_OAUTH_CLIENT_ID and APP_OAUTH_ISSUER_URL are required")
	}
	if cfg.Nylas.ClientID == "" || cfg.Nylas.ClientSecret == "" {
		return nil, errors.New("APP_NYLAS_CLIENT_ID and APP_NYLAS_CLIENT_SECRET are required")
	}
	if cfg.TokenEncryptionKey == "" {
		return nil, errors.New("APP_TOKEN_ENCRYPTION_KEY is required")
	}
	if len(cfg.TokenEncryptionKey) < 32 {
		return nil, fmt.Errorf("APP_TOKEN_ENCRYPTION_KEY must be at least 32 characters long (got %d)", len(cfg.TokenEncryptionKey))
	}
	if cfg.Sync.LookbackDays < 0 || cfg.Sync.LookaheadDays < 0 {
		return nil, errors.New("APP_SYNC_LOOKBACK_DAYS and APP_SYNC_LOOKAHEAD_DAYS must not be negative")
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. The portal will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
