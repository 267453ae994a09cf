package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	CORSAllowOrigins       string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsSubject          string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SummaryCacheTTL        time.Duration
	AIStatusCacheTTL       time.Duration
	AIAPIKey               string
	AIBaseURL              string
	AIModel                string
	AIMaxTokens            int
	AITimeout              time.Duration
	SuggestionRateLimit    int
	UploadMaxSizeMB        int
	UploadTempDir          string
	BootstrapAdminName     string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether raw CSV archiving is configured.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDUGUIDE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EduGuide API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("events.subject", "eduguide.imports.completed")
	v.SetDefault("cloudinary.folder", "eduguide/rosters")
	v.SetDefault("summary.cache_ttl", "5m")
	v.SetDefault("ai.status_cache_ttl", "1m")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.max_tokens", 600)
	v.SetDefault("ai.timeout", "20s")
	v.SetDefault("ai.rate_limit_per_minute", 10)
	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("bootstrap.admin_name", "Administrator")

	summaryTTL, err := parseDuration(v.GetString("summary.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	statusTTL, err := parseDuration(v.GetString("ai.status_cache_ttl"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai status cache ttl: %w", err)
	}

	aiTimeout, err := parseDuration(v.GetString("ai.timeout"), 20*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsSubject:          v.GetString("events.subject"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SummaryCacheTTL:        summaryTTL,
		AIStatusCacheTTL:       statusTTL,
		AIAPIKey:               v.GetString("ai.api_key"),
		AIBaseURL:              v.GetString("ai.base_url"),
		AIModel:                v.GetString("ai.model"),
		AIMaxTokens:            v.GetInt("ai.max_tokens"),
		AITimeout:              aiTimeout,
		SuggestionRateLimit:    v.GetInt("ai.rate_limit_per_minute"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		UploadTempDir:          v.GetString("upload.temp_dir"),
		BootstrapAdminName:     v.GetString("bootstrap.admin_name"),
		BootstrapAdminEmail:    v.GetString("bootstrap.admin_email"),
		BootstrapAdminPassword: v.GetString("bootstrap.admin_password"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AIMaxTokens <= 0 {
		cfg.AIMaxTokens = 600
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 5
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
