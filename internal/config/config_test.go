package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zenith.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
jwt_secret = "secret"

[ai]
api_key = "key"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 1.0, cfg.Chat.RateLimit)
	assert.Equal(t, 5, cfg.Chat.RateBurst)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9999
jwt_secret = "secret"

[ai]
api_key = "key"
model = "gpt-4o"
base_url = "https://example.com/v1"

[chat]
rate_limit = 2.5
rate_burst = 10
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "https://example.com/v1", cfg.AI.BaseURL)
	assert.Equal(t, 2.5, cfg.Chat.RateLimit)
	assert.Equal(t, 10, cfg.Chat.RateBurst)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9999
jwt_secret = "from-file"
`)

	t.Setenv("ZENITH_SERVER_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRequiresSecrets(t *testing.T) {
	var cfg Config
	cfg.Server.Port = 8888
	cfg.Server.JWTSecret = "secret"
	cfg.AI.APIKey = "key"
	cfg.AI.Model = "gpt-4o-mini"

	require.NoError(t, Validate(&cfg))

	missing := cfg
	missing.Server.JWTSecret = ""
	assert.Error(t, Validate(&missing))

	missing = cfg
	missing.AI.APIKey = ""
	assert.Error(t, Validate(&missing))

	missing = cfg
	missing.AI.Model = ""
	assert.Error(t, Validate(&missing))
}

func TestInitConfigRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zenith.toml")

	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8888, cfg.Server.Port)
}
