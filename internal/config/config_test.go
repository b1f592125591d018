package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HTTP_ADDR", "DB_DRIVER", "DB_DSN", "AUTH_HMAC_SECRET", "TOKEN_TTL",
		"AUTH_ROLE_FROM_DB", "CORS_ORIGINS", "EXAM_MAX_QUESTIONS", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.MaxQuestions)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("EXAM_MAX_QUESTIONS", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("AUTH_ROLE_FROM_DB", "false")

	cfg := FromEnv()
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.MaxQuestions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.RoleFromDB)
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXAM_MAX_QUESTIONS", "ten")
	t.Setenv("TOKEN_TTL", "forever")
	cfg := FromEnv()
	assert.Equal(t, 10, cfg.MaxQuestions)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "examd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[server]
addr = ":9090"
cors_origins = ["https://school.example"]

[database]
driver = "postgres"
dsn = "postgres://exam@db/exam"

[auth]
token_ttl = "1h"

[exam]
max_questions = 12

[log]
format = "json"
`)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "env wins over file")
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://exam@db/exam", cfg.DBDSN)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.MaxQuestions)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"https://school.example"}, cfg.CORSOrigins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadRejectsBadInput(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "[exam]\nmax_question = 3\n"},
		{"bad ttl", "[auth]\ntoken_ttl = \"soon\"\n"},
		{"bad driver", "[database]\ndriver = \"mysql\"\n"},
		{"zero questions", "[exam]\nmax_questions = 0\n"},
		{"not toml", "this is = = not toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}
