package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets environment variables for the duration of a test.
// t.Setenv restores the previous values automatically.
func setupEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	for name, value := range envVars {
		t.Setenv(name, value)
	}
}

// TestLoadDefaults verifies the defaults applied when only required values are set.
func TestLoadDefaults(t *testing.T) {
	setupEnv(t, map[string]string{
		"CAPTURE_LLM_GEMINI_API_KEY": "test-api-key",
	})

	cfg, err := Load()

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 10*1024*1024, cfg.Server.MaxImageBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 1000, cfg.Quota.GlobalDaily)
	assert.Equal(t, 50, cfg.Quota.PerUserDaily)
	assert.Equal(t, 50, cfg.Push.TokenRefreshMinutes)
	assert.True(t, cfg.Push.SandboxDefault)
	assert.Equal(t, 4, cfg.Task.WorkerCount)
	assert.Equal(t, 0, cfg.Job.RetentionMinutes)
}

// TestLoadFromEnv verifies that nested keys are read from environment variables.
func TestLoadFromEnv(t *testing.T) {
	setupEnv(t, map[string]string{
		"CAPTURE_SERVER_PORT":                 "9090",
		"CAPTURE_SERVER_LOG_LEVEL":            "debug",
		"CAPTURE_SERVER_CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"CAPTURE_QUOTA_GLOBAL_DAILY":          "2",
		"CAPTURE_QUOTA_PER_USER_DAILY":        "1",
		"CAPTURE_LLM_GEMINI_API_KEY":          "test-api-key",
		"CAPTURE_PUSH_TEAM_ID":                "TEAM123456",
		"CAPTURE_PUSH_KEY_ID":                 "KEY1234567",
		"CAPTURE_PUSH_BUNDLE_ID":              "com.example.capture",
		"CAPTURE_PUSH_SANDBOX_DEFAULT":        "false",
		"CAPTURE_TASK_WORKER_COUNT":           "8",
		"CAPTURE_JOB_RETENTION_MINUTES":       "120",
		"CAPTURE_PUSH_TOKEN_REFRESH_MINUTES":  "45",
	})

	cfg, err := Load()

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 2, cfg.Quota.GlobalDaily)
	assert.Equal(t, 1, cfg.Quota.PerUserDaily)
	assert.Equal(t, "test-api-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "TEAM123456", cfg.Push.TeamID)
	assert.Equal(t, "KEY1234567", cfg.Push.KeyID)
	assert.Equal(t, "com.example.capture", cfg.Push.BundleID)
	assert.False(t, cfg.Push.SandboxDefault)
	assert.Equal(t, 45, cfg.Push.TokenRefreshMinutes)
	assert.Equal(t, 8, cfg.Task.WorkerCount)
	assert.Equal(t, 120, cfg.Job.RetentionMinutes)
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing Gemini API key",
			envVars: map[string]string{
				"CAPTURE_SERVER_PORT": "9090",
			},
		},
		{
			name: "Invalid port number",
			envVars: map[string]string{
				"CAPTURE_SERVER_PORT":        "999999",
				"CAPTURE_LLM_GEMINI_API_KEY": "test-api-key",
			},
		},
		{
			name: "Invalid log level",
			envVars: map[string]string{
				"CAPTURE_SERVER_LOG_LEVEL":   "invalid-level",
				"CAPTURE_LLM_GEMINI_API_KEY": "test-api-key",
			},
		},
		{
			name: "Zero per-user quota",
			envVars: map[string]string{
				"CAPTURE_QUOTA_PER_USER_DAILY": "0",
				"CAPTURE_LLM_GEMINI_API_KEY":   "test-api-key",
			},
		},
		{
			name: "Token refresh at provider expiry",
			envVars: map[string]string{
				"CAPTURE_PUSH_TOKEN_REFRESH_MINUTES": "60",
				"CAPTURE_LLM_GEMINI_API_KEY":         "test-api-key",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CAPTURE_LLM_GEMINI_API_KEY", "")
			setupEnv(t, tc.envVars)

			cfg, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
			assert.Nil(t, cfg, "Config should be nil when an error occurs")
		})
	}
}
