package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Quota  QuotaConfig  `mapstructure:"quota"  validate:"required"`
	LLM    LLMConfig    `mapstructure:"llm"    validate:"required"`
	Push   PushConfig   `mapstructure:"push"`
	Task   TaskConfig   `mapstructure:"task"   validate:"required"`
	Job    JobConfig    `mapstructure:"job"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// MaxImageBytes bounds the decoded screenshot size accepted by both
	// analysis entry points.
	MaxImageBytes int `mapstructure:"max_image_bytes" validate:"gt=0"`

	// AnalyzeTimeoutSeconds bounds a single vision analysis call, sync or async.
	AnalyzeTimeoutSeconds int `mapstructure:"analyze_timeout_seconds" validate:"gt=0"`

	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// "*" allows any origin.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// QuotaConfig holds the daily request ceilings.
type QuotaConfig struct {
	GlobalDaily  int `mapstructure:"global_daily"   validate:"gt=0"`
	PerUserDaily int `mapstructure:"per_user_daily" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// PromptTemplatePath optionally overrides the embedded extraction prompt.
	PromptTemplatePath string `mapstructure:"prompt_template_path"`

	MaxRetries        int `mapstructure:"max_retries"         validate:"gte=0,lte=5"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}

// PushConfig holds the push provider credentials. Every field is optional:
// missing or invalid credentials leave push delivery unconfigured for the
// lifetime of the process rather than failing startup.
type PushConfig struct {
	TeamID     string `mapstructure:"team_id"`
	KeyID      string `mapstructure:"key_id"`
	KeyPath    string `mapstructure:"key_path"`
	KeyContent string `mapstructure:"key_content"`
	BundleID   string `mapstructure:"bundle_id"`

	// SandboxDefault is the environment assumed for device registrations that
	// do not say which one they belong to.
	SandboxDefault bool `mapstructure:"sandbox_default"`

	// TokenRefreshMinutes must stay below the provider's 60 minute hard expiry.
	TokenRefreshMinutes int `mapstructure:"token_refresh_minutes" validate:"gte=1,lt=60"`
	TimeoutSeconds      int `mapstructure:"timeout_seconds"       validate:"gt=0"`
}

// TaskConfig configures the background task runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"gt=0"`
}

// JobConfig controls in-memory job retention. A zero RetentionMinutes keeps
// finished jobs until the process restarts.
type JobConfig struct {
	RetentionMinutes     int `mapstructure:"retention_minutes"      validate:"gte=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"gt=0"`
}
