package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/snapclient/internal/flagx"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"auth_service_url":      "https://auth.example",
		"realtime_url":          "wss://rt.example",
		"notifications_enabled": false,
		"feed_page_size":        50,
		"request_timeout":       float64(2 * time.Second),
	})

	t.Run("loads from -config", func(t *testing.T) {
		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(&cfg, []string{"-config", full}))

		assert.Equal(t, "https://auth.example", cfg.AuthServiceURL)
		assert.Equal(t, "wss://rt.example", cfg.RealtimeURL)
		assert.False(t, cfg.NotificationsEnabled)
		assert.Equal(t, 50, cfg.FeedPageSize)
		assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
		assert.Equal(t, "snapclient.db", cfg.DatabasePath, "absent keys keep their value")
	})

	t.Run("falls back to env var", func(t *testing.T) {
		t.Setenv(flagx.ConfigFileEnv, full)
		var cfg Config
		require.NoError(t, parseJSON(&cfg, nil))
		assert.Equal(t, "https://auth.example", cfg.AuthServiceURL)
	})

	t.Run("no file leaves config alone", func(t *testing.T) {
		t.Setenv(flagx.ConfigFileEnv, "")
		cfg := Config{AuthServiceURL: "keep"}
		require.NoError(t, parseJSON(&cfg, []string{"-page", "3"}))
		assert.Equal(t, "keep", cfg.AuthServiceURL)
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		var cfg Config
		require.Error(t, parseJSON(&cfg, []string{"-c", bad}))
	})

	t.Run("missing file is an error", func(t *testing.T) {
		var cfg Config
		require.Error(t, parseJSON(&cfg, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
