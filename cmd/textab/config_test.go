package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
	assert.Equal(t, DefaultGenerateConfig(), cfg.Generate)
	assert.Equal(t, DefaultRateLimitConfig(), cfg.RateLimit)

	// A first run leaves a config file behind for the user to edit.
	require.FileExists(t, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, cfg.Server.ApiAddr, onDisk.Server.ApiAddr)
}

func TestLoadConfigMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"server_config": {"api_addr": ":9999", "log_level": "debug"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.ApiAddr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	// Sections the file does not mention keep their defaults.
	assert.Equal(t, DefaultGenerateConfig().MaxRows, cfg.Generate.MaxRows)
}

func TestLoadConfigRejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"server_config": `},
		{"empty api addr", `{"server_config": {"api_addr": ""}}`},
		{"zero max rows", `{"generate_config": {"max_rows": 0}}`},
		{"negative history limit", `{"generate_config": {"history_limit": -1}}`},
		{"rate limit without rps", `{"rate_limit_config": {"enabled": true, "rps": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigManagerUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cm, err := NewConfigManager(path)
	require.NoError(t, err)

	cfg := cm.Get()
	gen := *cfg.Generate
	gen.MaxRows = 42
	cfg.Generate = &gen
	require.NoError(t, cm.Update(cfg))
	assert.Equal(t, 42, cm.Get().Generate.MaxRows)

	// A second manager on the same path sees the saved change, like a
	// restarted server would.
	reloaded, err := NewConfigManager(path)
	require.NoError(t, err)
	assert.Equal(t, 42, reloaded.Get().Generate.MaxRows)
}

func TestConfigManagerRejectsInvalidUpdate(t *testing.T) {
	cm, err := NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	cfg := cm.Get()
	srv := *cfg.Server
	srv.ApiAddr = ""
	cfg.Server = &srv
	assert.Error(t, cm.Update(cfg))

	// The active config is unchanged after the failed update.
	assert.Equal(t, DefaultServerConfig().ApiAddr, cm.Get().Server.ApiAddr)
}

func TestConfigManagerIsTrusted(t *testing.T) {
	cm, err := NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	cfg := cm.Get()
	srv := *cfg.Server
	srv.TrustedProxies = []string{"10.0.0.0/8", "198.51.100.7", "not-parseable"}
	cfg.Server = &srv
	require.NoError(t, cm.Update(cfg))

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"10.255.255.255", true},
		{"198.51.100.7", true},
		{"198.51.100.8", false},
		{"11.0.0.1", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cm.IsTrusted(tt.ip), "IsTrusted(%q)", tt.ip)
	}
}
