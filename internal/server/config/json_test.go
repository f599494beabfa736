package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr":                   ":9000",
		"database_dsn":                    "postgres://json",
		"secret_key":                      "json_secret",
		"access_token_validity_duration":  "15m",
		"refresh_token_validity_duration": "168h",
		"email_token_validity_duration":   "24h",
		"s3_root_user":                    "user",
		"s3_root_password":                "password",
		"s3_bucket":                       "bucket",
		"s3_region":                       "region",
		"s3_base_endpoint":                "http://minio:9000/",
		"redis_addr":                      "redis:6379",
		"mail_api_token":                  "token",
		"mail_from":                       "from@example.com",
		"base_url":                        "https://api.example.com",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, ":9000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://json", cfg.DatabaseDSN)
		assert.Equal(t, "json_secret", cfg.SecretKey)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 168*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 24*time.Hour, cfg.EmailTokenValidityDuration)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	})

	t.Run("no config flag leaves values untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		before := *cfg
		parseJson(cfg)

		assert.Equal(t, before, *cfg)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(t.TempDir(), "absent.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
