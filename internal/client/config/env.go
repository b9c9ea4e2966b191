package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvAuthURL         = "SNAPCLIENT_AUTH_URL"
	EnvPostsURL        = "SNAPCLIENT_POSTS_URL"
	EnvInteractionsURL = "SNAPCLIENT_INTERACTIONS_URL"
	EnvStatsURL        = "SNAPCLIENT_STATS_URL"
	EnvRealtimeURL     = "SNAPCLIENT_REALTIME_URL"
	EnvDatabasePath    = "SNAPCLIENT_DB_PATH"
	EnvPassphrase      = "SNAPCLIENT_CREDENTIAL_PASSPHRASE"
	EnvNotifications   = "SNAPCLIENT_NOTIFICATIONS"
	EnvFeedPageSize    = "SNAPCLIENT_FEED_PAGE_SIZE"
	EnvRequestTimeout  = "SNAPCLIENT_REQUEST_TIMEOUT"
	EnvLogLevel        = "SNAPCLIENT_LOG_LEVEL"
)

// loadDotEnv copies path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays cfg with the variables lookup knows about.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvAuthURL:         &cfg.AuthServiceURL,
		EnvPostsURL:        &cfg.PostsServiceURL,
		EnvInteractionsURL: &cfg.InteractionsServiceURL,
		EnvStatsURL:        &cfg.StatsServiceURL,
		EnvRealtimeURL:     &cfg.RealtimeURL,
		EnvDatabasePath:    &cfg.DatabasePath,
		EnvPassphrase:      &cfg.CredentialPassphrase,
		EnvLogLevel:        &cfg.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvNotifications); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvNotifications, err)
		}
		cfg.NotificationsEnabled = b
	}
	if v, ok := lookup(EnvFeedPageSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFeedPageSize, err)
		}
		cfg.FeedPageSize = n
	}
	if v, ok := lookup(EnvRequestTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}
