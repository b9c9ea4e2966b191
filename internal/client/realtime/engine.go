// Package realtime keeps the signed-in user's conversation list and open
// message threads in sync with the document store, and performs the chat
// writes (send, mark read).
package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

// State is the lifecycle of a live query.
type State int

const (
	StateInactive State = iota
	StateSubscribing
	StateActive
	StateUnsubscribed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateUnsubscribed:
		return "unsubscribed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides the message id generator.
func WithIDs(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

type listener struct {
	id int
	fn func()
}

// Engine owns the conversation subscription of one user session. Update
// listeners run on the engine's consumer goroutine; they must not call Stop.
type Engine struct {
	store docstore.Store
	log   logging.Logger
	now   func() time.Time
	newID func() string

	mu        sync.Mutex
	state     State
	user      string
	convs     []models.Conversation
	unread    bool
	lastErr   error
	sub       *stream.Subscription[[]models.Conversation]
	cancel    context.CancelFunc
	done      chan struct{}
	streams   map[string]*MessageStream
	listeners []listener
	nextID    int
}

func NewEngine(store docstore.Store, l logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		log:     l.With("module", "realtime"),
		now:     time.Now,
		newID:   uuid.NewString,
		streams: make(map[string]*MessageStream),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start subscribes to the conversations of cred's user. Starting again for
// the same user is a no-op; a different user replaces the running session.
func (e *Engine) Start(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorNoSession, err)
	}
	user := cred.User.UserID()

	e.mu.Lock()
	running := e.sub != nil
	same := e.user == user
	e.mu.Unlock()
	if running && same {
		return nil
	}
	if running {
		e.Stop()
	}

	e.mu.Lock()
	e.state = StateSubscribing
	e.user = user
	e.lastErr = nil
	e.mu.Unlock()

	sub, err := e.store.WatchConversations(ctx, user)
	if err != nil {
		e.mu.Lock()
		e.state = StateInactive
		e.lastErr = err
		e.mu.Unlock()
		return fmt.Errorf("watch conversations: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.sub = sub
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.consume(runCtx, sub, done)
	e.log.Info(ctx, "conversation subscription started", "user", user)
	return nil
}

func (e *Engine) consume(ctx context.Context, sub *stream.Subscription[[]models.Conversation], done chan struct{}) {
	defer close(done)
	for {
		convs, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) || ctx.Err() != nil {
				return
			}
			// No retry here; the store connection owns reconnects.
			e.mu.Lock()
			if e.sub == sub {
				e.lastErr = err
			}
			e.mu.Unlock()
			e.log.Error(ctx, "conversation subscription failed", "error", err)
			return
		}
		e.apply(sub, convs)
	}
}

// apply replaces the conversation list with a snapshot.
func (e *Engine) apply(sub *stream.Subscription[[]models.Conversation], convs []models.Conversation) {
	e.mu.Lock()
	if e.sub != sub {
		e.mu.Unlock()
		return
	}
	e.convs = convs
	e.unread = DeriveUnread(convs, e.user)
	e.state = StateActive
	ls := append([]listener(nil), e.listeners...)
	e.mu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

// Stop tears the session down: every message stream is closed and the
// conversation subscription released. When Stop returns no listener is
// running and none will run again.
func (e *Engine) Stop() {
	e.mu.Lock()
	sub, cancel, done := e.sub, e.cancel, e.done
	streams := make([]*MessageStream, 0, len(e.streams))
	for _, s := range e.streams {
		streams = append(streams, s)
	}
	wasRunning := sub != nil
	e.sub, e.cancel, e.done = nil, nil, nil
	e.convs = nil
	e.unread = false
	e.user = ""
	if wasRunning {
		e.state = StateUnsubscribed
	}
	e.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	if !wasRunning {
		return
	}
	sub.Close()
	cancel()
	<-done
	e.log.Info(context.Background(), "conversation subscription stopped")
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// User is the id of the session user, or "" when stopped.
func (e *Engine) User() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user
}

// Conversations returns a copy of the latest snapshot.
func (e *Engine) Conversations() []models.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Conversation, len(e.convs))
	for i, c := range e.convs {
		out[i] = c.Clone()
	}
	return out
}

func (e *Engine) HasUnread() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// LastError is the error that ended the conversation subscription, if any.
// The last good snapshot stays readable.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// OnUpdate registers fn to run after each applied snapshot.
func (e *Engine) OnUpdate(fn func()) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) sessionUser() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sub == nil || e.user == "" {
		return "", common.ErrorNoSession
	}
	return e.user, nil
}

// OpenConversation starts a message subscription for id. Opening an id
// that is already open replaces the previous stream.
func (e *Engine) OpenConversation(ctx context.Context, id string) (*MessageStream, error) {
	user, err := e.sessionUser()
	if err != nil {
		return nil, err
	}
	a, b, err := Participants(id)
	if err != nil {
		return nil, err
	}
	if user != a && user != b {
		return nil, fmt.Errorf("conversation %s: %w", id, common.ErrorNotParticipant)
	}

	e.CloseConversation(id)

	sub, err := e.store.WatchMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("watch messages %s: %w", id, err)
	}

	ms := newMessageStream(id, sub, e.log)
	ms.onClose = func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.streams[id] == ms {
			delete(e.streams, id)
		}
	}

	e.mu.Lock()
	if e.sub == nil {
		e.mu.Unlock()
		ms.Close()
		return nil, common.ErrorNoSession
	}
	e.streams[id] = ms
	e.mu.Unlock()

	ms.start()
	return ms, nil
}

// CloseConversation closes the open stream for id, if any.
func (e *Engine) CloseConversation(id string) {
	e.mu.Lock()
	ms := e.streams[id]
	e.mu.Unlock()
	if ms != nil {
		ms.Close()
	}
}

// SendMessage sends text to user to, creating the conversation on first
// contact. The conversation update and the message append are committed
// together. It returns the conversation id.
func (e *Engine) SendMessage(ctx context.Context, to, text string) (string, error) {
	user, err := e.sessionUser()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message text is required", common.ErrorValidation)
	}
	id, err := ConversationID(user, to)
	if err != nil {
		return "", err
	}

	msg := models.Message{
		ID:        e.newID(),
		Sender:    user,
		Text:      text,
		CreatedAt: e.now().UTC(),
	}
	var b docstore.Batch
	b.UpsertConversation(id, []string{user, to}, msg).AppendMessage(id, msg)
	if err := e.store.Commit(ctx, b); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	e.log.Debug(ctx, "message sent", "conversation", id, "message", msg.ID)
	return id, nil
}

// SendToConversation sends text in an existing or derivable conversation.
func (e *Engine) SendToConversation(ctx context.Context, id, text string) error {
	user, err := e.sessionUser()
	if err != nil {
		return err
	}
	a, b, err := Participants(id)
	if err != nil {
		return err
	}
	switch user {
	case a:
		_, err = e.SendMessage(ctx, b, text)
	case b:
		_, err = e.SendMessage(ctx, a, text)
	default:
		err = fmt.Errorf("conversation %s: %w", id, common.ErrorNotParticipant)
	}
	return err
}

// MarkConversationRead clears the unread count of id. The store leaves it
// unchanged when the session user sent the last message.
func (e *Engine) MarkConversationRead(ctx context.Context, id string) error {
	user, err := e.sessionUser()
	if err != nil {
		return err
	}
	if _, _, err := Participants(id); err != nil {
		return err
	}
	var b docstore.Batch
	if err := e.store.Commit(ctx, *b.MarkRead(id, user)); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}
