package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/snapclient/internal/flagx"
)

var knownFlags = []string{
	"-auth", "-posts", "-interactions", "-stats", "-realtime",
	"-db", "-notifications", "-page", "-timeout", "-log",
}

// parseFlags populates Config fields from command-line flags.
//
//	-auth string          auth/profile service base URL
//	-posts string         posts service base URL
//	-interactions string  likes/shares/follows service base URL
//	-stats string         statistics service base URL
//	-realtime string      realtime store websocket URL
//	-db string            local database file
//	-notifications bool   allow notifications
//	-page int             feed page size
//	-timeout duration     per-request timeout (0 = none)
//	-log string           log level
//
// args is filtered with flagx.FilterArgs first, so flags owned by other
// components are ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("snapcli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.AuthServiceURL, "auth", cfg.AuthServiceURL, "auth/profile service base URL")
	fs.StringVar(&cfg.PostsServiceURL, "posts", cfg.PostsServiceURL, "posts service base URL")
	fs.StringVar(&cfg.InteractionsServiceURL, "interactions", cfg.InteractionsServiceURL, "interactions service base URL")
	fs.StringVar(&cfg.StatsServiceURL, "stats", cfg.StatsServiceURL, "statistics service base URL")
	fs.StringVar(&cfg.RealtimeURL, "realtime", cfg.RealtimeURL, "realtime store websocket URL")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database file")
	fs.BoolVar(&cfg.NotificationsEnabled, "notifications", cfg.NotificationsEnabled, "allow notifications")
	fs.IntVar(&cfg.FeedPageSize, "page", cfg.FeedPageSize, "feed page size")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout (0 = none)")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
