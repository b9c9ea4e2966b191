// Package config loads runtime configuration for the snaps CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory and SNAPCLIENT_* environment
//     variables.
//  3. Optional JSON file selected with -c/-config or $SNAPCLIENT_CONFIG.
//  4. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so "5s" and integer nanoseconds both work:
//
//	{
//	  "auth_service_url": "https://auth.snaps.example",
//	  "posts_service_url": "https://posts.snaps.example",
//	  "interactions_service_url": "https://interactions.snaps.example",
//	  "stats_service_url": "https://stats.snaps.example",
//	  "realtime_url": "wss://rt.snaps.example/realtime",
//	  "database_path": "snapclient.db",
//	  "notifications_enabled": true,
//	  "feed_page_size": 20,
//	  "request_timeout": "5s",
//	  "log_level": "info"
//	}
//
// The credential passphrase is read from SNAPCLIENT_CREDENTIAL_PASSPHRASE
// only.
package config
