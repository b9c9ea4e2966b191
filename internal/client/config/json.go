package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/snapclient/internal/flagx"
	"github.com/dmitrijs2005/snapclient/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the corresponding Config field untouched.
type JsonConfig struct {
	AuthServiceURL         string          `json:"auth_service_url"`
	PostsServiceURL        string          `json:"posts_service_url"`
	InteractionsServiceURL string          `json:"interactions_service_url"`
	StatsServiceURL        string          `json:"stats_service_url"`
	RealtimeURL            string          `json:"realtime_url"`
	DatabasePath           string          `json:"database_path"`
	NotificationsEnabled   *bool           `json:"notifications_enabled"`
	FeedPageSize           int             `json:"feed_page_size"`
	RequestTimeout         *timex.Duration `json:"request_timeout"`
	LogLevel               string          `json:"log_level"`
}

// parseJSON overlays cfg with the JSON file named by -c/-config in args
// (or $SNAPCLIENT_CONFIG). Without a file it does nothing.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.AuthServiceURL, jc.AuthServiceURL)
	setString(&cfg.PostsServiceURL, jc.PostsServiceURL)
	setString(&cfg.InteractionsServiceURL, jc.InteractionsServiceURL)
	setString(&cfg.StatsServiceURL, jc.StatsServiceURL)
	setString(&cfg.RealtimeURL, jc.RealtimeURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.NotificationsEnabled != nil {
		cfg.NotificationsEnabled = *jc.NotificationsEnabled
	}
	if jc.FeedPageSize != 0 {
		cfg.FeedPageSize = jc.FeedPageSize
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
