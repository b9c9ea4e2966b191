package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/app"
	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/config"
	"github.com/dmitrijs2005/snapclient/internal/client/docstore/remote"
	"github.com/dmitrijs2005/snapclient/internal/client/feed"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/client/notify"
	"github.com/dmitrijs2005/snapclient/internal/client/realtime"
	"github.com/dmitrijs2005/snapclient/internal/client/session"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/cryptox"
	"github.com/dmitrijs2005/snapclient/internal/logging"
)

// defaultWait bounds how long a command waits for a first realtime snapshot
// when no request timeout is configured.
const defaultWait = 5 * time.Second

type App struct {
	config       *config.Config
	log          logging.Logger
	db           *sql.DB
	sessions     *session.Store
	runtime      *app.Runtime
	auth         *client.AuthClient
	posts        *client.PostsClient
	interactions *client.InteractionsClient
	stats        *client.StatsClient
	feed         *feed.Aggregator
	reader       *bufio.Reader
	out          io.Writer

	mu   sync.Mutex
	page *models.FeedPage
}

// NewApp opens local storage and wires the service clients and the realtime
// runtime described by c. The REPL reads from stdin and writes to stdout.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		l.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	opts := []session.Option{session.WithLogger(l)}
	if c.CredentialPassphrase != "" {
		opts = append(opts, session.WithSealer(cryptox.NewSealer(c.CredentialPassphrase)))
	}
	sessions := session.New(db, opts...)

	return newApp(c, l, db, sessions, remoteConnector(c.RealtimeURL, l), os.Stdin, os.Stdout), nil
}

// remoteConnector dials the realtime websocket with the session token.
func remoteConnector(url string, l logging.Logger) app.Connector {
	return func(ctx context.Context, cred *models.Credential) (app.Backend, error) {
		c, err := remote.Dial(ctx, url, cred.Token, l)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func newApp(c *config.Config, l logging.Logger, db *sql.DB, sessions *session.Store, connect app.Connector, in io.Reader, w io.Writer) *App {
	out := &syncWriter{w: w}
	timeout := c.RequestTimeout
	auth := client.NewAuthClient(c.AuthServiceURL, timeout, sessions.Token)
	posts := client.NewPostsClient(c.PostsServiceURL, timeout, sessions.Token)
	interactions := client.NewInteractionsClient(c.InteractionsServiceURL, timeout)

	rt := app.NewRuntime(sessions, auth, connect,
		notify.StaticPermission(c.NotificationsEnabled), notify.NewWriterDisplayer(out), l)

	return &App{
		config:       c,
		log:          l.With("module", "cli"),
		db:           db,
		sessions:     sessions,
		runtime:      rt,
		auth:         auth,
		posts:        posts,
		interactions: interactions,
		stats:        client.NewStatsClient(c.StatsServiceURL, timeout),
		feed:         feed.NewAggregator(posts, interactions, auth, l, c.FeedPageSize),
		reader:       bufio.NewReader(in),
		out:          out,
	}
}

// Run restores the saved session, serves the REPL until the user leaves and
// releases everything on the way out.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.runtime.Start(ctx); err != nil {
		a.log.Warn(ctx, "session not restored", "error", err)
	}

	fmt.Fprintln(a.out, "snapclient (type 'help' for commands)")
	if cred := a.sessions.Current(); cred != nil {
		fmt.Fprintf(a.out, "Welcome back, @%s.\n", cred.User.Username)
		a.warnOffline()
	}

	runREPL(ctx, a, a.status, a.reader, a.out)
	return nil
}

func (a *App) Close() {
	a.runtime.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "closing database", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.sessions.Current() != nil
}

// status renders the prompt badge: the user, a chat marker and the count of
// unseen notifications.
func (a *App) status() string {
	cred := a.sessions.Current()
	if cred == nil {
		return "guest"
	}
	s := "@" + cred.User.Username
	if eng := a.runtime.Engine(); eng != nil && eng.HasUnread() {
		s += " *"
	}
	if ch := a.runtime.Notifications(); ch != nil {
		if n := ch.UnreadCount(); n > 0 {
			s += fmt.Sprintf(" [%d]", n)
		}
	}
	return s
}

func (a *App) credential() (*models.Credential, error) {
	cred := a.sessions.Current()
	if cred == nil {
		return nil, common.ErrorNoSession
	}
	return cred, nil
}

// engine is the live realtime engine, or the reason there is none.
func (a *App) engine() (*realtime.Engine, error) {
	if _, err := a.credential(); err != nil {
		return nil, err
	}
	eng := a.runtime.Engine()
	if eng == nil {
		if err := a.runtime.InitError(); err != nil {
			return nil, fmt.Errorf("chat is offline: %w", err)
		}
		return nil, fmt.Errorf("chat is offline: %w", common.ErrorUnavailable)
	}
	return eng, nil
}

func (a *App) warnOffline() {
	if err := a.runtime.InitError(); err != nil {
		fmt.Fprintf(a.out, "Chat is offline (%s). Feed commands still work.\n", client.MessageOf(err))
	}
}

func (a *App) wait() time.Duration {
	if d := a.config.RequestTimeout; d > 0 {
		return d
	}
	return defaultWait
}

// syncWriter serializes writes; notifications are printed from the push
// listener while the REPL is writing.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
