// Package notify turns foreground push messages into in-app notification
// records and local notifications.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

// Text used when a push message has no title or body.
const (
	DefaultTitle = "New notification"
	DefaultBody  = "You have a new notification"
)

// Permission asks the platform whether notifications may be shown.
type Permission interface {
	Request(ctx context.Context) (bool, error)
}

// PushProvider delivers the device token and the foreground push feed.
type PushProvider interface {
	Token(ctx context.Context) (string, error)
	Subscribe(ctx context.Context) (*stream.Subscription[models.PushMessage], error)
}

// Displayer shows a local notification.
type Displayer interface {
	Show(ctx context.Context, title, body string) error
}

type Option func(*Channel)

func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

type Channel struct {
	perm    Permission
	push    PushProvider
	display Displayer
	log     logging.Logger
	now     func() time.Time

	mu        sync.Mutex
	token     string
	records   []models.NotificationRecord
	sub       *stream.Subscription[models.PushMessage]
	done      chan struct{}
	listeners map[int]func(models.NotificationRecord)
	nextID    int
}

func NewChannel(perm Permission, push PushProvider, display Displayer, l logging.Logger, opts ...Option) *Channel {
	c := &Channel{
		perm:      perm,
		push:      push,
		display:   display,
		log:       l.With("module", "notify"),
		now:       time.Now,
		listeners: make(map[int]func(models.NotificationRecord)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RegisterForPush asks for permission and, when granted, fetches the
// device token. The token lives in memory only. Denials and failures are
// logged and swallowed; there is no retry.
func (c *Channel) RegisterForPush(ctx context.Context) {
	granted, err := c.perm.Request(ctx)
	if err != nil {
		c.log.Warn(ctx, "notification permission request failed", "error", err)
		return
	}
	if !granted {
		c.log.Info(ctx, "notification permission denied")
		return
	}

	token, err := c.push.Token(ctx)
	if err != nil {
		c.log.Warn(ctx, "push token unavailable", "error", err)
		return
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.log.Debug(ctx, "registered for push")
}

// Token is the device token, or "" before a successful registration.
func (c *Channel) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Start attaches the foreground listener. It is a no-op when already
// attached.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	sub, err := c.push.Subscribe(ctx)
	if err != nil {
		return err
	}
	done := make(chan struct{})

	c.mu.Lock()
	c.sub, c.done = sub, done
	c.mu.Unlock()

	go c.listen(sub, done)
	return nil
}

func (c *Channel) listen(sub *stream.Subscription[models.PushMessage], done chan struct{}) {
	defer close(done)
	ctx := context.Background()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if !errors.Is(err, stream.ErrClosed) {
				c.log.Warn(ctx, "push feed ended", "error", err)
			}
			return
		}
		c.receive(ctx, sub, msg)
	}
}

func (c *Channel) receive(ctx context.Context, sub *stream.Subscription[models.PushMessage], msg models.PushMessage) {
	rec := models.NotificationRecord{
		Title: msg.Title,
		Body:  msg.Body,
		Data:  make(map[string]string, len(msg.Data)),
		Date:  c.now().UTC(),
	}
	if rec.Title == "" {
		rec.Title = DefaultTitle
	}
	if rec.Body == "" {
		rec.Body = DefaultBody
	}
	for k, v := range msg.Data {
		rec.Data[k] = v
	}

	c.mu.Lock()
	if c.sub != sub {
		c.mu.Unlock()
		return
	}
	c.records = append(c.records, rec)
	ls := make([]func(models.NotificationRecord), 0, len(c.listeners))
	for _, fn := range c.listeners {
		ls = append(ls, fn)
	}
	c.mu.Unlock()

	if err := c.display.Show(ctx, rec.Title, rec.Body); err != nil {
		c.log.Warn(ctx, "local notification not shown", "error", err)
	}
	for _, fn := range ls {
		fn(rec)
	}
}

// Stop detaches the listener and waits for it to exit.
func (c *Channel) Stop() {
	c.mu.Lock()
	sub, done := c.sub, c.done
	c.sub, c.done = nil, nil
	c.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
}

// Reset drops the records and token of the previous session.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.token = ""
}

// Records returns the notifications in arrival order.
func (c *Channel) Records() []models.NotificationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.NotificationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// MarkAsRead marks every record read.
func (c *Channel) MarkAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		c.records[i].Read = true
	}
}

func (c *Channel) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// OnRecord registers fn to run for every new record.
func (c *Channel) OnRecord(fn func(models.NotificationRecord)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}
