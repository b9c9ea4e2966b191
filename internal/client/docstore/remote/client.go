// Package remote is the websocket client of the realtime document store.
// One connection multiplexes live queries, commits, lookups and the
// foreground push feed of the signed-in user.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

const writeWait = 10 * time.Second

// Redial backoff after the connection drops.
const (
	reconnectBase = 200 * time.Millisecond
	reconnectMax  = 15 * time.Second
)

// ErrConnectionClosed is returned for work attempted after Close.
var ErrConnectionClosed = errors.New("docstore connection closed")

// Client survives dropped connections: it redials with backoff, re-issues
// the live queries and the push registration, and keeps the subscriptions
// of its callers open. Requests made while it is reconnecting fail with
// common.ErrorUnavailable. Only Close or a rejected token end it.
type Client struct {
	url    string
	header http.Header
	log    logging.Logger
	seq    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu         sync.Mutex
	pending    map[string]chan frame
	convSubs   map[string]*stream.Subscription[[]models.Conversation]
	msgSubs    map[string]*stream.Subscription[[]models.Message]
	pushSubs   map[string]*stream.Subscription[models.PushMessage]
	queries    map[string]query
	registered bool
	broken     chan struct{} // closed when the current connection drops
	down       error         // set while reconnecting
	err        error         // set once the client is finished

	done chan struct{}
}

var _ docstore.Store = (*Client)(nil)

// Dial connects to url, authenticating with the bearer token.
func Dial(ctx context.Context, url, token string, l logging.Logger) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set(common.AuthorizationHeader, "Bearer "+token)
	}

	conn, err := dialConn(ctx, url, header)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:      url,
		header:   header,
		log:      l.With("module", "docstore_remote"),
		ctx:      cctx,
		cancel:   cancel,
		conn:     conn,
		pending:  make(map[string]chan frame),
		convSubs: make(map[string]*stream.Subscription[[]models.Conversation]),
		msgSubs:  make(map[string]*stream.Subscription[[]models.Message]),
		pushSubs: make(map[string]*stream.Subscription[models.PushMessage]),
		queries:  make(map[string]query),
		broken:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop(conn, c.broken)
	return c, nil
}

func dialConn(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("dial %s: %w", url, common.ErrorUnauthorized)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dial %s: %w: %v", url, common.ErrorUnavailable, err)
	}
	return conn, nil
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.seq.Add(1), 10)
}

func (c *Client) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: write %s: %v", common.ErrorUnavailable, f.Type, err)
	}
	return nil
}

// request sends f and waits for the ack or error carrying the same id.
func (c *Client) request(ctx context.Context, f frame) (frame, error) {
	reply := make(chan frame, 1)

	c.mu.Lock()
	if err := c.unusable(); err != nil {
		c.mu.Unlock()
		return frame{}, err
	}
	broken := c.broken
	c.pending[f.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.write(f); err != nil {
		return frame{}, err
	}

	select {
	case r := <-reply:
		if r.Type == frameError {
			return frame{}, r.err()
		}
		return r, nil
	case <-broken:
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.unusable(); err != nil {
			return frame{}, err
		}
		return frame{}, fmt.Errorf("%w: connection dropped", common.ErrorUnavailable)
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return frame{}, c.err
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

// unusable is the reason no request can be sent now. Callers hold mu.
func (c *Client) unusable() error {
	if c.err != nil {
		return c.err
	}
	return c.down
}

func (c *Client) WatchConversations(ctx context.Context, participant string) (*stream.Subscription[[]models.Conversation], error) {
	if participant == "" {
		return nil, fmt.Errorf("%w: participant is required", common.ErrorValidation)
	}
	id := c.nextID()
	sub := stream.New[[]models.Conversation](stream.Latest, func() { c.unsubscribe(id) })

	q := query{Collection: collectionConversations, Participant: participant}
	c.mu.Lock()
	c.convSubs[id] = sub
	c.queries[id] = q
	c.mu.Unlock()

	if _, err := c.request(ctx, frame{Type: frameSubscribe, ID: id, Query: &q}); err != nil {
		sub.Close()
		return nil, fmt.Errorf("watch conversations: %w", err)
	}
	return sub, nil
}

func (c *Client) WatchMessages(ctx context.Context, conversationID string) (*stream.Subscription[[]models.Message], error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", common.ErrorValidation)
	}
	id := c.nextID()
	sub := stream.New[[]models.Message](stream.Latest, func() { c.unsubscribe(id) })

	q := query{Collection: collectionMessages, ConversationID: conversationID}
	c.mu.Lock()
	c.msgSubs[id] = sub
	c.queries[id] = q
	c.mu.Unlock()

	if _, err := c.request(ctx, frame{Type: frameSubscribe, ID: id, Query: &q}); err != nil {
		sub.Close()
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	return sub, nil
}

// unsubscribe is the release hook of every live query.
func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	delete(c.convSubs, id)
	delete(c.msgSubs, id)
	delete(c.queries, id)
	closed := c.unusable() != nil
	c.mu.Unlock()

	if closed {
		return
	}
	if err := c.write(frame{Type: frameUnsubscribe, ID: id}); err != nil {
		c.log.Debug(context.Background(), "unsubscribe not sent", "id", id, "error", err)
	}
}

func (c *Client) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	r, err := c.request(ctx, frame{Type: frameGet, ID: c.nextID(), ConversationID: id})
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	if r.Conversation == nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, common.ErrorNotFound)
	}
	return r.Conversation, nil
}

func (c *Client) Commit(ctx context.Context, b docstore.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := c.request(ctx, frame{Type: frameCommit, ID: c.nextID(), Batch: &b}); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Token registers this connection for push delivery and returns the
// device token the server assigned.
func (c *Client) Token(ctx context.Context) (string, error) {
	r, err := c.request(ctx, frame{Type: frameRegister, ID: c.nextID()})
	if err != nil {
		return "", fmt.Errorf("register for push: %w", err)
	}
	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
	return r.Token, nil
}

// Subscribe returns the foreground push feed. Pushes that arrive while no
// subscription is open are dropped.
func (c *Client) Subscribe(ctx context.Context) (*stream.Subscription[models.PushMessage], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := c.nextID()
	sub := stream.New[models.PushMessage](stream.Queue, func() {
		c.mu.Lock()
		delete(c.pushSubs, id)
		c.mu.Unlock()
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.pushSubs[id] = sub
	return sub, nil
}

func (c *Client) readLoop(conn *websocket.Conn, broken chan struct{}) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			_ = conn.Close()
			c.lost(broken, err)
			return
		}
		c.dispatch(f)
	}
}

// lost handles the end of the connection whose generation is broken.
func (c *Client) lost(broken chan struct{}, cause error) {
	if c.ctx.Err() != nil || websocket.IsCloseError(cause, websocket.CloseNormalClosure) || errors.Is(cause, net.ErrClosed) {
		c.shutdown(ErrConnectionClosed)
		return
	}

	c.mu.Lock()
	if c.err != nil || c.broken != broken {
		c.mu.Unlock()
		return
	}
	c.down = fmt.Errorf("%w: reconnecting: %v", common.ErrorUnavailable, cause)
	close(c.broken)
	c.mu.Unlock()

	c.log.Warn(context.Background(), "docstore connection lost, reconnecting", "error", cause)
	go c.reconnect()
}

func (c *Client) reconnect() {
	b := retry.WithCappedDuration(reconnectMax, retry.WithJitterPercent(10, retry.NewExponential(reconnectBase)))
	conn, err := retry.DoValue(c.ctx, b, func(ctx context.Context) (*websocket.Conn, error) {
		conn, err := dialConn(ctx, c.url, c.header)
		if err != nil {
			if errors.Is(err, common.ErrorUnauthorized) {
				return nil, err
			}
			c.log.Debug(ctx, "redial failed", "error", err)
			return nil, retry.RetryableError(err)
		}
		return conn, nil
	})
	if err != nil {
		if c.ctx.Err() != nil {
			c.shutdown(ErrConnectionClosed)
		} else {
			c.shutdown(err)
		}
		return
	}
	c.resume(conn)
}

// resume installs conn and re-issues the live queries on it.
func (c *Client) resume(conn *websocket.Conn) {
	c.mu.Lock()
	if c.err != nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	c.down = nil
	c.broken = make(chan struct{})
	broken := c.broken
	queries := make(map[string]query, len(c.queries))
	for id, q := range c.queries {
		queries[id] = q
	}
	registered := c.registered
	c.mu.Unlock()

	go c.readLoop(conn, broken)

	// Subscriptions keep their ids so snapshots reach the same streams.
	for id, q := range queries {
		if err := c.write(frame{Type: frameSubscribe, ID: id, Query: &q}); err != nil {
			c.log.Warn(c.ctx, "resubscribe failed", "id", id, "error", err)
		}
	}
	if registered {
		ctx, cancel := context.WithTimeout(c.ctx, writeWait)
		defer cancel()
		if r, err := c.request(ctx, frame{Type: frameRegister, ID: c.nextID()}); err != nil {
			c.log.Warn(ctx, "push registration not renewed", "error", err)
		} else {
			c.log.Debug(ctx, "push registration renewed", "token", r.Token)
		}
	}
	c.log.Info(c.ctx, "docstore connection restored", "subscriptions", len(queries))
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Type {
	case frameAck, frameError:
		if reply, ok := c.pending[f.ID]; ok {
			select {
			case reply <- f:
			default:
			}
			return
		}
		if f.Type == frameError {
			// A live query failed after it was established.
			if sub, ok := c.convSubs[f.ID]; ok {
				sub.Fail(f.err())
			}
			if sub, ok := c.msgSubs[f.ID]; ok {
				sub.Fail(f.err())
			}
		}
	case frameSnapshot:
		if sub, ok := c.convSubs[f.ID]; ok {
			sub.Publish(nonNil(f.Conversations))
		}
		if sub, ok := c.msgSubs[f.ID]; ok {
			sub.Publish(nonNil(f.Messages))
		}
	case framePush:
		if f.Push == nil {
			return
		}
		for _, sub := range c.pushSubs {
			sub.Publish(*f.Push)
		}
	default:
		c.log.Warn(context.Background(), "unknown frame", "type", f.Type)
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// shutdown finishes the client with err, fails every open subscription and
// wakes pending requests.
func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	conv, msgs, push := c.convSubs, c.msgSubs, c.pushSubs
	c.convSubs = map[string]*stream.Subscription[[]models.Conversation]{}
	c.msgSubs = map[string]*stream.Subscription[[]models.Message]{}
	c.pushSubs = map[string]*stream.Subscription[models.PushMessage]{}
	c.queries = map[string]query{}
	c.mu.Unlock()

	c.cancel()
	close(c.done)
	for _, s := range conv {
		s.Fail(err)
	}
	for _, s := range msgs {
		s.Fail(err)
	}
	for _, s := range push {
		s.Fail(err)
	}
	if !errors.Is(err, ErrConnectionClosed) {
		c.log.Warn(context.Background(), "docstore connection given up", "error", err)
	}
}

// Close says goodbye to the server and waits for the read loop to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	c.cancel()
	live := c.err == nil && c.down == nil
	c.mu.Unlock()

	c.writeMu.Lock()
	conn := c.conn
	if live {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}
	c.writeMu.Unlock()

	if live {
		select {
		case <-c.done:
		case <-time.After(writeWait):
		}
	}
	err := conn.Close()
	c.shutdown(ErrConnectionClosed)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
