// Package memory is an in-process docstore.Store. It backs tests and an
// offline demo mode, and is what the websocket test server bridges to.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

type conversationWatch struct {
	participant string
	sub         *stream.Subscription[[]models.Conversation]
}

type messageWatch struct {
	conversationID string
	sub            *stream.Subscription[[]models.Message]
}

type Store struct {
	now func() time.Time

	mu            sync.Mutex
	conversations map[string]models.Conversation
	// messages are kept oldest first.
	messages map[string][]models.Message
	convW    map[int]conversationWatch
	msgW     map[int]messageWatch
	nextID   int
}

var _ docstore.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		convW:         make(map[int]conversationWatch),
		msgW:          make(map[int]messageWatch),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) WatchConversations(ctx context.Context, participant string) (*stream.Subscription[[]models.Conversation], error) {
	if participant == "" {
		return nil, fmt.Errorf("%w: participant is required", common.ErrorValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	sub := stream.New[[]models.Conversation](stream.Latest, func() { s.unwatch(id) })
	s.convW[id] = conversationWatch{participant: participant, sub: sub}
	sub.Publish(s.conversationsOf(participant))
	return sub, nil
}

func (s *Store) WatchMessages(ctx context.Context, conversationID string) (*stream.Subscription[[]models.Message], error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", common.ErrorValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	sub := stream.New[[]models.Message](stream.Latest, func() { s.unwatch(id) })
	s.msgW[id] = messageWatch{conversationID: conversationID, sub: sub}
	sub.Publish(s.messagesOf(conversationID))
	return sub, nil
}

func (s *Store) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, common.ErrorNotFound)
	}
	c = c.Clone()
	return &c, nil
}

// Commit stages every mutation on copies of the touched documents and
// installs them only if all succeed. Watchers of changed documents receive
// their new snapshot before Commit returns, in commit order.
func (s *Store) Commit(ctx context.Context, b docstore.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	staged := make(map[string]models.Conversation)
	appended := make(map[string][]models.Message)

	lookup := func(id string) (models.Conversation, bool) {
		if c, ok := staged[id]; ok {
			return c, true
		}
		c, ok := s.conversations[id]
		if ok {
			c = c.Clone()
		}
		return c, ok
	}

	for _, m := range b.Mutations {
		c, exists := lookup(m.ConversationID)

		switch m.Kind {
		case docstore.UpsertConversation:
			msg := stamp(*m.Message, now)
			if !exists {
				parts := append([]string(nil), m.Participants...)
				sort.Strings(parts)
				c = models.Conversation{
					ID:           m.ConversationID,
					Participants: parts,
					UnreadCount:  1,
					CreatedAt:    now,
				}
			} else {
				c.UnreadCount++
			}
			if !c.HasParticipant(msg.Sender) {
				return fmt.Errorf("sender %s of %s: %w", msg.Sender, m.ConversationID, common.ErrorNotParticipant)
			}
			c.LastMessage = &msg
			c.UpdatedAt = now
			staged[c.ID] = c

		case docstore.AppendMessage:
			if !exists {
				return fmt.Errorf("conversation %s: %w", m.ConversationID, common.ErrorNotFound)
			}
			msg := stamp(*m.Message, now)
			if !c.HasParticipant(msg.Sender) {
				return fmt.Errorf("sender %s of %s: %w", msg.Sender, m.ConversationID, common.ErrorNotParticipant)
			}
			appended[c.ID] = append(appended[c.ID], msg)

		case docstore.MarkRead:
			if !exists {
				return fmt.Errorf("conversation %s: %w", m.ConversationID, common.ErrorNotFound)
			}
			if !c.HasParticipant(m.Reader) {
				return fmt.Errorf("reader %s of %s: %w", m.Reader, m.ConversationID, common.ErrorNotParticipant)
			}
			if c.LastMessage == nil || c.LastMessage.Sender == m.Reader || c.UnreadCount == 0 {
				continue
			}
			c.UnreadCount = 0
			staged[c.ID] = c
		}
	}

	for id, c := range staged {
		s.conversations[id] = c
	}
	for id, msgs := range appended {
		s.messages[id] = append(s.messages[id], msgs...)
	}
	s.notify(staged, appended)
	return nil
}

// stamp fills CreatedAt for messages built without a clock.
func stamp(m models.Message, now time.Time) models.Message {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return m
}

func (s *Store) notify(changed map[string]models.Conversation, appended map[string][]models.Message) {
	if len(changed) > 0 {
		for _, w := range s.convW {
			for _, c := range changed {
				if c.HasParticipant(w.participant) {
					w.sub.Publish(s.conversationsOf(w.participant))
					break
				}
			}
		}
	}
	for _, w := range s.msgW {
		if _, ok := appended[w.conversationID]; ok {
			w.sub.Publish(s.messagesOf(w.conversationID))
		}
	}
}

func (s *Store) conversationsOf(participant string) []models.Conversation {
	out := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.HasParticipant(participant) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) messagesOf(id string) []models.Message {
	src := s.messages[id]
	out := make([]models.Message, len(src))
	for i, m := range src {
		out[len(src)-1-i] = m
	}
	return out
}

func (s *Store) unwatch(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convW, id)
	delete(s.msgW, id)
}

// Watchers reports how many live queries are attached.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convW) + len(s.msgW)
}
