package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides database and Redis config needed for all tests
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"RULES_DB_HOST":        "localhost",
		"RULES_DB_PORT":        "5432",
		"RULES_DB_NAME":        "rules_test",
		"RULES_DB_USER":        "test_user",
		"RULES_DB_PASSWORD":    "test_pass",
		"RULES_REDIS_HOST":     "localhost",
		"RULES_REDIS_PORT":     "6379",
		"RULES_REDIS_PASSWORD": "redis_password_123",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig returns a complete valid production configuration
func validProductionConfig() map[string]string {
	return map[string]string{
		"RULES_APP_ENV": "production",

		"RULES_DB_HOST":     "prod-db.example.com",
		"RULES_DB_PORT":     "5432",
		"RULES_DB_NAME":     "rules_prod",
		"RULES_DB_USER":     "prod_user",
		"RULES_DB_PASSWORD": "SuperSecure123!",
		"RULES_DB_SSL_MODE": "require",

		"RULES_REDIS_HOST":        "prod-redis.example.com",
		"RULES_REDIS_PORT":        "6379",
		"RULES_REDIS_PASSWORD":    "RedisSecure123!",
		"RULES_REDIS_TLS_ENABLED": "true",

		"RULES_SERVER_TLS_ENABLED":   "true",
		"RULES_SERVER_TLS_CERT_FILE": "/certs/cert.pem",
		"RULES_SERVER_TLS_KEY_FILE":  "/certs/key.pem",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rules-system", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.Port)
				assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
				assert.Equal(t, 15*time.Second, cfg.Engine.WebhookTimeout)
				assert.Equal(t, "/bin/sh", cfg.Engine.FulfillmentShell)
				assert.False(t, cfg.Engine.FulfillmentDisabled)
				assert.True(t, cfg.Syncer.Enabled)
				assert.Equal(t, 60*time.Second, cfg.Syncer.Interval)
			},
			wantErr: false,
		},
		{
			name: "Should load custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"RULES_APP_NAME":         "rules-staging",
				"RULES_APP_ENV":          "staging",
				"RULES_APP_LOG_LEVEL":    "debug",
				"RULES_APP_LOG_FORMAT":   "json",
				"RULES_SERVER_PORT":      "9000",
				"RULES_SYNCER_INTERVAL":  "15s",
				"RULES_ENGINE_WEBHOOK_TIMEOUT": "5s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rules-staging", cfg.App.Name)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, "9000", cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Syncer.Interval)
				assert.Equal(t, 5*time.Second, cfg.Engine.WebhookTimeout)
			},
			wantErr: false,
		},
		{
			name: "Should fail on invalid environment",
			envVars: mergeEnvVars(map[string]string{
				"RULES_APP_ENV": "qa",
			}),
			wantErr: true,
		},
		{
			name: "Should fail on invalid log level",
			envVars: mergeEnvVars(map[string]string{
				"RULES_APP_LOG_LEVEL": "trace",
			}),
			wantErr: true,
		},
		{
			name: "Should fail when database host is missing",
			envVars: map[string]string{
				"RULES_REDIS_HOST": "localhost",
				"RULES_REDIS_PORT": "6379",
			},
			wantErr: true,
		},
		{
			name:    "Should pass full production configuration",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "production", cfg.App.Environment)
				assert.True(t, cfg.Server.TLSEnabled)
			},
			wantErr: false,
		},
		{
			name: "Should fail in production without server TLS",
			envVars: mergeEnvVars(func() map[string]string {
				env := validProductionConfig()
				env["RULES_SERVER_TLS_ENABLED"] = "false"
				return env
			}()),
			wantErr: true,
		},
		{
			name: "Should allow missing passwords in non-production environments",
			envVars: mergeEnvVars(map[string]string{
				"RULES_APP_ENV":        "development",
				"RULES_DB_PASSWORD":    "",
				"RULES_REDIS_PASSWORD": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "", cfg.Database.Password)
				assert.Equal(t, "", cfg.Redis.Password)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv automatically prevents parallel execution and cleans up after the test
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestEngineConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should pass with custom engine configuration",
			envVars: mergeEnvVars(map[string]string{
				"RULES_ENGINE_WEBHOOK_TIMEOUT":     "30s",
				"RULES_ENGINE_FULFILLMENT_TIMEOUT": "45s",
				"RULES_ENGINE_FULFILLMENT_SHELL":   "/bin/bash",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Engine.WebhookTimeout)
				assert.Equal(t, 45*time.Second, cfg.Engine.FulfillmentTimeout)
				assert.Equal(t, "/bin/bash", cfg.Engine.FulfillmentShell)
			},
			wantErr: false,
		},
		{
			name: "Should fail when webhook timeout is zero",
			envVars: mergeEnvVars(map[string]string{
				"RULES_ENGINE_WEBHOOK_TIMEOUT": "0s",
			}),
			wantErr: true,
		},
		{
			name: "Should allow disabling fulfillment",
			envVars: mergeEnvVars(map[string]string{
				"RULES_ENGINE_FULFILLMENT_DISABLED": "true",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Engine.FulfillmentDisabled)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestEngineConfig_EmptyShell(t *testing.T) {
	t.Parallel()

	enabled := EngineConfig{WebhookTimeout: time.Second, FulfillmentTimeout: time.Second}
	assert.Error(t, enabled.Validate(), "an empty shell is invalid while fulfillment is enabled")

	disabled := EngineConfig{WebhookTimeout: time.Second, FulfillmentTimeout: time.Second, FulfillmentDisabled: true}
	assert.NoError(t, disabled.Validate(), "the shell is irrelevant once fulfillment is disabled")
}

func TestCacheConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should allow memory backend in development",
			envVars: mergeEnvVars(map[string]string{
				"RULES_CACHE_BACKEND":         "memory",
				"RULES_CACHE_MEMORY_CAPACITY": "500",
				"RULES_CACHE_MEMORY_TTL":      "2m",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
				assert.Equal(t, 500, cfg.Cache.MemoryCapacity)
				assert.Equal(t, 2*time.Minute, cfg.Cache.MemoryTTL)
			},
			wantErr: false,
		},
		{
			name: "Should reject memory backend in production",
			envVars: mergeEnvVars(func() map[string]string {
				env := validProductionConfig()
				env["RULES_CACHE_BACKEND"] = "memory"
				return env
			}()),
			wantErr: true,
		},
		{
			name: "Should reject unknown backend",
			envVars: mergeEnvVars(map[string]string{
				"RULES_CACHE_BACKEND": "memcached",
			}),
			wantErr: true,
		},
		{
			name: "Should reject zero capacity",
			envVars: mergeEnvVars(map[string]string{
				"RULES_CACHE_MEMORY_CAPACITY": "0",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestSyncerConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should verify syncer defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Syncer.Enabled)
				assert.Equal(t, 60*time.Second, cfg.Syncer.Interval)
				assert.Equal(t, 30*time.Second, cfg.Syncer.CycleTimeout)
			},
			wantErr: false,
		},
		{
			name: "Should fail when interval is below one second",
			envVars: mergeEnvVars(map[string]string{
				"RULES_SYNCER_INTERVAL": "100ms",
			}),
			wantErr: true,
		},
		{
			name: "Should allow disabling the syncer",
			envVars: mergeEnvVars(map[string]string{
				"RULES_SYNCER_ENABLED": "false",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Syncer.Enabled)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
