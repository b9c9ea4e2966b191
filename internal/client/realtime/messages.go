package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

// MessageStream mirrors the messages of one conversation, newest first.
// Each stream is cancelled on its own with Close.
type MessageStream struct {
	id  string
	sub *stream.Subscription[[]models.Message]
	log logging.Logger

	mu        sync.Mutex
	state     State
	msgs      []models.Message
	err       error
	listeners []func()
	running   bool

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newMessageStream(id string, sub *stream.Subscription[[]models.Message], l logging.Logger) *MessageStream {
	return &MessageStream{
		id:    id,
		sub:   sub,
		log:   l.With("conversation", id),
		state: StateSubscribing,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (m *MessageStream) start() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	go m.consume()
}

func (m *MessageStream) consume() {
	defer close(m.done)
	for {
		msgs, err := m.sub.Next(context.Background())
		if err != nil {
			if !errors.Is(err, stream.ErrClosed) {
				m.mu.Lock()
				m.err = err
				m.mu.Unlock()
				m.log.Error(context.Background(), "message subscription failed", "error", err)
			}
			return
		}

		m.mu.Lock()
		if m.state == StateUnsubscribed {
			m.mu.Unlock()
			return
		}
		m.msgs = msgs
		m.state = StateActive
		ls := append([]func(){}, m.listeners...)
		m.mu.Unlock()

		m.readyOnce.Do(func() { close(m.ready) })
		for _, fn := range ls {
			fn()
		}
	}
}

func (m *MessageStream) ID() string { return m.id }

// Messages returns the latest snapshot, newest first.
func (m *MessageStream) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.msgs...)
}

func (m *MessageStream) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err is the error that ended the subscription, if any.
func (m *MessageStream) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Ready is closed once the first snapshot has been applied.
func (m *MessageStream) Ready() <-chan struct{} {
	return m.ready
}

// OnUpdate registers fn to run after each applied snapshot. It must not
// call Close.
func (m *MessageStream) OnUpdate(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Close detaches the stream. Once it returns, no listener runs and the
// snapshot no longer changes.
func (m *MessageStream) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.state = StateUnsubscribed
		m.listeners = nil
		running := m.running
		m.mu.Unlock()

		m.sub.Close()
		if running {
			<-m.done
		}
		if m.onClose != nil {
			m.onClose()
		}
	})
}
