package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/varoOP/discoverdb/internal/domain"
)

// EnvPrefix prefixes every environment variable, e.g. DISCOVERDB_TMDB_API_KEY
const EnvPrefix = "DISCOVERDB"

// SetDefaults registers the default of every optional key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tmdb_base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb_rate_limit", 40)
	v.SetDefault("jikan_base_url", "https://api.jikan.moe/v4")
	v.SetDefault("jikan_delay", 700*time.Millisecond)
	v.SetDefault("gemini_base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("database_dir", ".")
	v.SetDefault("cache_ttl", 12*time.Hour)
	v.SetDefault("provider_timeout", 10*time.Second)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
}

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (DISCOVERDB_*)
// 3. Flags bound to the global viper instance
func Load() (*domain.Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*domain.Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{"tmdb_api_key", "gemini_api_key", "jwt_secret", "discord_webhook_url"} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", key)
		}
	}

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	validate := validator.New()
	// report config keys instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, errors.Errorf("invalid config: %s failed %q (set via config.yaml or %s_%s environment variable)",
				fe.Field(), fe.Tag(), EnvPrefix, strings.ToUpper(fe.Field()))
		}
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}
