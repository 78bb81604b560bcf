package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                   string
	Port                     string
	DatabaseURL              string
	StyleStorePath           string
	StyleStoreCapacityBytes  int
	PreviewStoragePath       string
	GeoIPDBPath              string
	GeminiAPIKey             string
	GeminiBaseURL            string
	GeminiFastModel          string
	GeminiProModel           string
	GeminiRatePerMinute      int
	DefaultNarrativeLanguage string
	CORSAllowedOrigins       []string
	HTTPReadTimeout          time.Duration
	HTTPWriteTimeout         time.Duration
	HTTPIdleTimeout          time.Duration
	RateLimitPerMin          int
	SessionTTL               time.Duration
	InsightsTTL              time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		Port:                     getEnv("PORT", "8080"),
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StyleStorePath:           getEnv("STYLE_STORE_PATH", "./data/styles"),
		StyleStoreCapacityBytes:  getEnvInt("STYLE_STORE_CAPACITY_BYTES", 5<<20),
		PreviewStoragePath:       getEnv("PREVIEW_STORAGE_PATH", "./data/previews"),
		GeoIPDBPath:              os.Getenv("GEOIP_DB_PATH"),
		GeminiAPIKey:             strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:            os.Getenv("GEMINI_BASE_URL"),
		GeminiFastModel:          getEnv("GEMINI_FAST_MODEL", "gemini-2.5-flash"),
		GeminiProModel:           getEnv("GEMINI_PRO_MODEL", "gemini-2.5-pro"),
		GeminiRatePerMinute:      getEnvInt("GEMINI_RATE_PER_MINUTE", 60),
		DefaultNarrativeLanguage: getEnv("DEFAULT_NARRATIVE_LANGUAGE", "zh"),
		CORSAllowedOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:          time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:         time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:          time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:          getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		SessionTTL:               time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)),
		InsightsTTL:              time.Minute * time.Duration(getEnvInt("INSIGHTS_TTL_MINUTES", 360)),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}
	if cfg.StyleStoreCapacityBytes <= 0 {
		return nil, fmt.Errorf("STYLE_STORE_CAPACITY_BYTES must be positive")
	}
	if cfg.GeminiRatePerMinute <= 0 {
		cfg.GeminiRatePerMinute = 60
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.InsightsTTL <= 0 {
		cfg.InsightsTTL = 6 * time.Hour
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
