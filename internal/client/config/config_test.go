package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "snapclient.db", c.DatabasePath)
	assert.Equal(t, 20, c.FeedPageSize)
	assert.True(t, c.NotificationsEnabled)
	assert.Zero(t, c.RequestTimeout)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"no db":            func(c *Config) { c.DatabasePath = "" },
		"zero page":        func(c *Config) { c.FeedPageSize = 0 },
		"negative timeout": func(c *Config) { c.RequestTimeout = -time.Second },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"posts_service_url": "https://posts.json",
		"stats_service_url": "https://stats.json",
		"request_timeout":   "5s",
	})

	t.Chdir(dir)
	t.Setenv(EnvAuthURL, "https://auth.env")
	t.Setenv(EnvPostsURL, "https://posts.env")
	t.Setenv(EnvPassphrase, "secret")
	os.Args = []string{"snapcli", "-c", path, "-stats", "https://stats.flag", "-page", "5"}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	want := &Config{}
	want.LoadDefaults()
	want.AuthServiceURL = "https://auth.env"
	want.PostsServiceURL = "https://posts.json"
	want.StatsServiceURL = "https://stats.flag"
	want.CredentialPassphrase = "secret"
	want.RequestTimeout = 5 * time.Second
	want.FeedPageSize = 5

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"snapcli"}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvLogLevel+"=debug\n"), 0o600))
	t.Chdir(dir)
	// Registers cleanup; godotenv then sets the value.
	t.Setenv(EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Chdir(t.TempDir())
	os.Args = []string{"snapcli", "-page", "abc"}

	_, err := LoadConfig()
	require.Error(t, err)
}
