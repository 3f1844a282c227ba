package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "CORS_ORIGIN", "HF_API_KEY", "DATABASE_URL",
		"SERVER_PORT", "VISION_API_KEY", "VISION_MAX_ATTEMPTS", "VISION_LOADING_WAIT",
		"VISION_REQUIRE_CREDENTIALS", "VISION_PRIMARY_MODEL", "VISION_TOTAL_TIMEOUT",
		"SERVER_WRITE_TIMEOUT", "UPLOADS_DIR", "UPLOADS_MAX_FILE_SIZE",
		"JOURNAL_DRIVER", "JOURNAL_DSN", "LOGGING_LEVEL", "LOGGING_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.CORSOrigins())
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "Salesforce/blip-image-captioning-large", cfg.Vision.PrimaryModel)
	assert.Equal(t, "nlpconnect/vit-gpt2-image-captioning", cfg.Vision.BackupModel)
	assert.Equal(t, 60*time.Second, cfg.Vision.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Vision.TotalTimeout)
	assert.Less(t, cfg.Vision.TotalTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, 3, cfg.Vision.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Vision.LoadingWait)
	assert.Equal(t, 3*time.Second, cfg.Vision.RetryBackoff)
	assert.False(t, cfg.Vision.RequireCredentials)
	assert.Empty(t, cfg.Vision.APIKey)
	assert.Equal(t, int64(10<<20), cfg.Uploads.MaxFileSize)
	assert.Equal(t, 24*time.Hour, cfg.Uploads.Retention)
	assert.Equal(t, "", cfg.Journal.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("HF_API_KEY", "hf_secret")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("VISION_LOADING_WAIT", "2s")
	t.Setenv("VISION_REQUIRE_CREDENTIALS", "true")
	t.Setenv("JOURNAL_DRIVER", "sqlite")
	t.Setenv("JOURNAL_DSN", "/tmp/journal.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "hf_secret", cfg.Vision.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins())
	assert.Equal(t, 2*time.Second, cfg.Vision.LoadingWait)
	assert.True(t, cfg.Vision.RequireCredentials)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.DSN)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "70000"}, "invalid server port"},
		{"no attempts", map[string]string{"VISION_MAX_ATTEMPTS": "0"}, "max_attempts"},
		{"no primary model", map[string]string{"VISION_PRIMARY_MODEL": " "}, "primary_model is required"},
		{"vision budget outlives response", map[string]string{"VISION_TOTAL_TIMEOUT": "5m"}, "shorter than server write_timeout"},
		{"short write timeout", map[string]string{"SERVER_WRITE_TIMEOUT": "30s"}, "shorter than server write_timeout"},
		{"no vision budget", map[string]string{"VISION_TOTAL_TIMEOUT": "0s"}, "total_timeout must be positive"},
		{"journal without dsn", map[string]string{"JOURNAL_DRIVER": "postgres"}, "journal dsn is required"},
		{"unknown driver", map[string]string{"JOURNAL_DRIVER": "mysql", "JOURNAL_DSN": "x"}, "unknown journal driver"},
		{"bad level", map[string]string{"LOGGING_LEVEL": "loud"}, "invalid log level"},
		{"bad format", map[string]string{"LOGGING_FORMAT": "xml"}, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
