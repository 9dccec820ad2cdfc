package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CAPTURE_SERVER_PORT.
const EnvPrefix = "CAPTURE"

// defaults lists every configuration key. Registering each key with viper is
// what lets AutomaticEnv resolve nested keys during Unmarshal.
var defaults = map[string]interface{}{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.max_image_bytes":          10 * 1024 * 1024,
	"server.analyze_timeout_seconds":  60,
	"server.shutdown_timeout_seconds": 10,
	"server.cors_allowed_origins":     []string{"*"},

	"quota.global_daily":   1000,
	"quota.per_user_daily": 50,

	"llm.gemini_api_key":       "",
	"llm.model_name":           "gemini-2.0-flash",
	"llm.prompt_template_path": "",
	"llm.max_retries":          2,
	"llm.retry_delay_seconds":  2,

	"push.team_id":               "",
	"push.key_id":                "",
	"push.key_path":              "",
	"push.key_content":           "",
	"push.bundle_id":             "",
	"push.sandbox_default":       true,
	"push.token_refresh_minutes": 50,
	"push.timeout_seconds":       10,

	"task.worker_count": 4,
	"task.queue_size":   100,

	"job.retention_minutes":      0,
	"job.sweep_interval_minutes": 10,
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags on the configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
