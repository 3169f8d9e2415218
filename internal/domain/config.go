package domain

import "time"

type Config struct {
	TmdbApiKey        string        `mapstructure:"tmdb_api_key" validate:"required"`
	TmdbBaseURL       string        `mapstructure:"tmdb_base_url" validate:"required,url"`
	TmdbRateLimit     int           `mapstructure:"tmdb_rate_limit" validate:"gt=0"`
	JikanBaseURL      string        `mapstructure:"jikan_base_url" validate:"required,url"`
	JikanDelay        time.Duration `mapstructure:"jikan_delay" validate:"gte=0"`
	GeminiApiKey      string        `mapstructure:"gemini_api_key"`
	GeminiBaseURL     string        `mapstructure:"gemini_base_url" validate:"required,url"`
	GeminiModel       string        `mapstructure:"gemini_model" validate:"required"`
	DatabaseDir       string        `mapstructure:"database_dir" validate:"required"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	ProviderTimeout   time.Duration `mapstructure:"provider_timeout" validate:"gt=0"`
	HTTPAddr          string        `mapstructure:"http_addr" validate:"required"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url" validate:"omitempty,url"`
	LogLevel          string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
}
