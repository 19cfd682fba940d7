// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config dir at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SECONDME_HOME", dir)
	for _, key := range []string{
		"SECONDME_BASE_URL", "SECONDME_BASE_MODEL", "SECONDME_STORAGE",
		"SECONDME_DATA_DIR", "SECONDME_LOG_LEVEL", "SECONDME_REDIS_ADDR",
		"SECONDME_METRICS_ADDR",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, 0.3, cfg.Chat.Temperature)
	assert.True(t, cfg.Chat.EnableL0Retrieval)
	assert.True(t, cfg.Chat.EnableL1Retrieval)
	assert.Equal(t, 10*time.Millisecond, cfg.Chat.PumpInterval)
	assert.Equal(t, "Qwen2.5-0.5B-Instruct", cfg.Training.BaseModel)
	assert.Equal(t, 3*time.Second, cfg.Training.PollInterval)
	assert.Equal(t, 100, cfg.Training.LogWindow)
	assert.Equal(t, 3, cfg.Training.MinMemories)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "file", cfg.Broadcast.Backend)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad url", func(c *Config) { c.Server.BaseURL = "localhost:8002" }, "server.base_url"},
		{"hot temperature", func(c *Config) { c.Chat.Temperature = 3 }, "chat.temperature"},
		{"slow pump", func(c *Config) { c.Chat.PumpInterval = 2 * time.Second }, "chat.pump_interval"},
		{"fast poll", func(c *Config) { c.Training.PollInterval = time.Millisecond }, "training.poll_interval"},
		{"zero window", func(c *Config) { c.Training.LogWindow = 0 }, "training.log_window"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"broadcast backend", func(c *Config) { c.Broadcast.Backend = "kafka" }, "broadcast.backend"},
		{"redis without addr", func(c *Config) { c.Broadcast.Backend = "redis" }, "broadcast.redis_addr"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var errs ValidateErrors
			require.ErrorAs(t, err, &errs)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestConfig_LoadFromPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
base_url = "http://backend:9000/"
request_timeout = "30s"

[training]
base_model = "Qwen2.5-1.5B-Instruct"
poll_interval = "5s"

[storage]
backend = "SQLITE"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "Qwen2.5-1.5B-Instruct", cfg.Training.BaseModel)
	assert.Equal(t, 5*time.Second, cfg.Training.PollInterval)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	// Unset sections keep their defaults.
	assert.Equal(t, 100, cfg.Training.LogWindow)
	assert.Equal(t, 0.3, cfg.Chat.Temperature)
}

func TestConfig_LoadFromPathInvalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"tape\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SECONDME_BASE_URL", "http://10.0.0.2:8002")
	t.Setenv("SECONDME_REDIS_ADDR", "localhost:6379")
	t.Setenv("SECONDME_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8002", cfg.Server.BaseURL)
	assert.Equal(t, "redis", cfg.Broadcast.Backend)
	assert.Equal(t, "localhost:6379", cfg.Broadcast.RedisAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("SECONDME_BASE_MODEL"))
	t.Cleanup(func() { os.Unsetenv("SECONDME_BASE_MODEL") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECONDME_BASE_MODEL=from-dotenv\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Training.BaseModel)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Chat.SystemPrompt = "be brief"
	cfg.Training.PollInterval = 7 * time.Second

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "be brief", loaded.Chat.SystemPrompt)
	assert.Equal(t, 7*time.Second, loaded.Training.PollInterval)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("chat.temperature", "0.7"))
	v, err := cfg.Get("chat.temperature")
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)

	require.NoError(t, cfg.Set("training.poll_interval", "1s"))
	assert.Equal(t, time.Second, cfg.Training.PollInterval)

	require.NoError(t, cfg.Set("chat.enable_l1_retrieval", "no"))
	assert.False(t, cfg.Chat.EnableL1Retrieval)

	require.NoError(t, cfg.Set("training.log_window", 50))
	assert.Equal(t, 50, cfg.Training.LogWindow)

	_, err = cfg.Get("chat.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("training.min_memories", "many"))
	assert.Error(t, cfg.Set("chat.temperature.x", "1"))
}

func TestConfig_GetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	assert.Contains(t, keys, "server.base_url")
	assert.Contains(t, keys, "training.poll_interval")
	assert.Contains(t, keys, "broadcast.channel")
	assert.Contains(t, keys, "version")
	assert.IsIncreasing(t, keys)
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.BaseURL = "http://other:1"
	assert.Equal(t, "http://127.0.0.1:8002", cfg.Server.BaseURL)
}

func TestConfig_Paths(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	data, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), data)

	logFile, err := cfg.LogFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "secondme.log"), logFile)

	cfg.Storage.Dir = "/srv/secondme"
	data, err = cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/secondme", data)
}
