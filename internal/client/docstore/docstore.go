// Package docstore defines the realtime document store the chat engine is
// built on: live queries over conversations and messages, and atomic
// multi-document commits.
package docstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

// Store is implemented by memory.Store and remote.Client.
//
// Watch calls return Latest-mode subscriptions. The first value is the
// current result set; every later value is a full replacement. Closing the
// subscription detaches the live query.
type Store interface {
	// WatchConversations follows every conversation participant takes part
	// in, most recently updated first.
	WatchConversations(ctx context.Context, participant string) (*stream.Subscription[[]models.Conversation], error)
	// WatchMessages follows the messages of one conversation, newest first.
	WatchMessages(ctx context.Context, conversationID string) (*stream.Subscription[[]models.Message], error)
	// Conversation returns a single document or common.ErrorNotFound.
	Conversation(ctx context.Context, id string) (*models.Conversation, error)
	// Commit applies every mutation of b or none of them.
	Commit(ctx context.Context, b Batch) error
}

type MutationKind string

const (
	// UpsertConversation creates the conversation with unread=1, or sets
	// its last message and increments unread.
	UpsertConversation MutationKind = "upsertConversation"
	// AppendMessage adds a message to an existing conversation.
	AppendMessage MutationKind = "appendMessage"
	// MarkRead zeroes unread unless Reader sent the last message.
	MarkRead MutationKind = "markRead"
)

type Mutation struct {
	Kind           MutationKind    `json:"kind"`
	ConversationID string          `json:"conversationId"`
	Participants   []string        `json:"participants,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	Reader         string          `json:"reader,omitempty"`
}

// Batch is an ordered list of mutations committed atomically.
type Batch struct {
	Mutations []Mutation `json:"mutations"`
}

func (b *Batch) UpsertConversation(id string, participants []string, msg models.Message) *Batch {
	b.Mutations = append(b.Mutations, Mutation{
		Kind:           UpsertConversation,
		ConversationID: id,
		Participants:   append([]string(nil), participants...),
		Message:        &msg,
	})
	return b
}

func (b *Batch) AppendMessage(id string, msg models.Message) *Batch {
	b.Mutations = append(b.Mutations, Mutation{Kind: AppendMessage, ConversationID: id, Message: &msg})
	return b
}

func (b *Batch) MarkRead(id, reader string) *Batch {
	b.Mutations = append(b.Mutations, Mutation{Kind: MarkRead, ConversationID: id, Reader: reader})
	return b
}

// Validate checks the shape of every mutation. It does not look at stored
// state.
func (b Batch) Validate() error {
	if len(b.Mutations) == 0 {
		return fmt.Errorf("%w: empty batch", common.ErrorValidation)
	}
	for i, m := range b.Mutations {
		if m.ConversationID == "" {
			return fmt.Errorf("%w: mutation %d: conversation id is required", common.ErrorValidation, i)
		}
		switch m.Kind {
		case UpsertConversation, AppendMessage:
			if m.Message == nil || m.Message.ID == "" || m.Message.Sender == "" {
				return fmt.Errorf("%w: mutation %d: message with id and sender is required", common.ErrorValidation, i)
			}
			if m.Kind == UpsertConversation && len(m.Participants) != 2 {
				return fmt.Errorf("%w: mutation %d: exactly two participants are required", common.ErrorValidation, i)
			}
		case MarkRead:
			if m.Reader == "" {
				return fmt.Errorf("%w: mutation %d: reader is required", common.ErrorValidation, i)
			}
		default:
			return fmt.Errorf("%w: mutation %d: unknown kind %q", common.ErrorValidation, i, m.Kind)
		}
	}
	return nil
}
