package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the snaps CLI.
type Config struct {
	AuthServiceURL         string
	PostsServiceURL        string
	InteractionsServiceURL string
	StatsServiceURL        string
	// RealtimeURL is the websocket endpoint of the realtime document store.
	RealtimeURL string

	// DatabasePath is the SQLite file holding durable local state.
	DatabasePath string
	// CredentialPassphrase, when set, seals the persisted credential.
	CredentialPassphrase string

	NotificationsEnabled bool
	FeedPageSize         int
	// RequestTimeout bounds each REST call; 0 disables the bound.
	RequestTimeout time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.AuthServiceURL = "http://127.0.0.1:8081"
	c.PostsServiceURL = "http://127.0.0.1:8082"
	c.InteractionsServiceURL = "http://127.0.0.1:8083"
	c.StatsServiceURL = "http://127.0.0.1:8084"
	c.RealtimeURL = "ws://127.0.0.1:8085/realtime"
	c.DatabasePath = "snapclient.db"
	c.NotificationsEnabled = true
	c.FeedPageSize = 20
	c.RequestTimeout = 0
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, then .env and the environment,
// then the JSON file named by -c/-config, then command-line flags. Later
// sources take precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database path is required")
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("config: feed page size must be positive, got %d", c.FeedPageSize)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request timeout cannot be negative")
	}
	return nil
}
