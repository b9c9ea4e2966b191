package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/docstore/memory"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func cred(id int64) *models.Credential {
	return &models.Credential{Token: "t" + strconv.FormatInt(id, 10), User: &models.Profile{ID: id}}
}

func startEngine(t *testing.T, store docstore.Store, user int64) *Engine {
	t.Helper()
	var n atomic.Int64
	e := NewEngine(store, logging.Discard(), WithIDs(func() string {
		return "m" + strconv.FormatInt(user, 10) + "-" + strconv.FormatInt(n.Add(1), 10)
	}))
	require.NoError(t, e.Start(context.Background(), cred(user)))
	t.Cleanup(e.Stop)
	require.Eventually(t, func() bool { return e.State() == StateActive }, waitFor, tick)
	return e
}

func unread(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	c, err := s.Conversation(context.Background(), id)
	require.NoError(t, err)
	return c.UnreadCount
}

func TestEngine_SendAndMarkReadScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := startEngine(t, store, 1)
	b := startEngine(t, store, 2)

	id, err := a.SendMessage(ctx, "2", "hi")
	require.NoError(t, err)
	assert.Equal(t, "1_2", id)

	c, err := store.Conversation(ctx, "1_2")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UnreadCount)
	assert.Equal(t, "hi", c.LastMessage.Text)
	assert.Equal(t, "1", c.LastMessage.Sender)

	require.Eventually(t, func() bool { return len(b.Conversations()) == 1 && b.HasUnread() }, waitFor, tick)
	require.Eventually(t, func() bool { return len(a.Conversations()) == 1 }, waitFor, tick)
	assert.False(t, a.HasUnread(), "own message is not unread for the sender")

	require.NoError(t, b.MarkConversationRead(ctx, "1_2"))
	assert.Equal(t, 0, unread(t, store, "1_2"))
	require.Eventually(t, func() bool { return !b.HasUnread() }, waitFor, tick)

	require.NoError(t, a.MarkConversationRead(ctx, "1_2"))
	assert.Equal(t, 0, unread(t, store, "1_2"))
}

func TestEngine_SenderCannotMarkRead(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := startEngine(t, store, 1)
	startEngine(t, store, 2)

	_, err := a.SendMessage(ctx, "2", "one")
	require.NoError(t, err)
	require.NoError(t, a.SendToConversation(ctx, "1_2", "two"))
	assert.Equal(t, 2, unread(t, store, "1_2"))

	require.NoError(t, a.MarkConversationRead(ctx, "1_2"))
	assert.Equal(t, 2, unread(t, store, "1_2"))
}

func TestEngine_SendValidation(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, memory.New(), 1)

	_, err := e.SendMessage(ctx, "1", "self")
	require.ErrorIs(t, err, common.ErrorInvalidIdentifier)
	_, err = e.SendMessage(ctx, "2", "  ")
	require.ErrorIs(t, err, common.ErrorValidation)
	require.ErrorIs(t, e.SendToConversation(ctx, "2_3", "x"), common.ErrorNotParticipant)
	require.ErrorIs(t, e.MarkConversationRead(ctx, "bogus"), common.ErrorInvalidIdentifier)
}

func TestEngine_RequiresSession(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(memory.New(), logging.Discard())
	assert.Equal(t, StateInactive, e.State())

	_, err := e.SendMessage(ctx, "2", "hi")
	require.ErrorIs(t, err, common.ErrorNoSession)
	_, err = e.OpenConversation(ctx, "1_2")
	require.ErrorIs(t, err, common.ErrorNoSession)
	require.ErrorIs(t, e.Start(ctx, &models.Credential{Token: "t"}), common.ErrorNoSession)
}

func TestEngine_StopDeliversNoFurtherUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := startEngine(t, store, 2)
	sender := startEngine(t, store, 1)

	var updates atomic.Int32
	e.OnUpdate(func() { updates.Add(1) })

	_, err := sender.SendMessage(ctx, "2", "before")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return updates.Load() == 1 }, waitFor, tick)

	e.Stop()
	assert.Equal(t, StateUnsubscribed, e.State())
	assert.Empty(t, e.Conversations())
	assert.False(t, e.HasUnread())

	_, err = sender.SendMessage(ctx, "2", "after")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), updates.Load())
	assert.Empty(t, e.Conversations())
}

func TestEngine_RestartForAnotherUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sender := startEngine(t, store, 1)
	_, err := sender.SendMessage(ctx, "2", "to two")
	require.NoError(t, err)

	e := startEngine(t, store, 3)
	assert.Empty(t, e.Conversations())

	require.NoError(t, e.Start(ctx, cred(2)))
	assert.Equal(t, "2", e.User())
	require.Eventually(t, func() bool { return len(e.Conversations()) == 1 }, waitFor, tick)
}

func TestMessageStream_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := startEngine(t, store, 1)
	b := startEngine(t, store, 2)

	_, err := a.SendMessage(ctx, "2", "first")
	require.NoError(t, err)
	_, err = b.SendMessage(ctx, "1", "second")
	require.NoError(t, err)

	ms, err := b.OpenConversation(ctx, "1_2")
	require.NoError(t, err)
	defer ms.Close()

	select {
	case <-ms.Ready():
	case <-time.After(waitFor):
		t.Fatal("no snapshot")
	}
	msgs := ms.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Text)
	assert.Equal(t, StateActive, ms.State())

	_, err = a.OpenConversation(ctx, "2_3")
	require.ErrorIs(t, err, common.ErrorNotParticipant)
}

func TestMessageStream_DetachedStreamStaysSilent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := startEngine(t, store, 1)

	_, err := a.SendMessage(ctx, "2", "hi")
	require.NoError(t, err)

	ms, err := a.OpenConversation(ctx, "1_2")
	require.NoError(t, err)
	<-ms.Ready()

	var calls atomic.Int32
	ms.OnUpdate(func() { calls.Add(1) })

	a.CloseConversation("1_2")
	assert.Equal(t, StateUnsubscribed, ms.State())
	before := ms.Messages()

	_, err = a.SendMessage(ctx, "2", "after teardown")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, calls.Load())
	assert.Equal(t, before, ms.Messages())
	assert.Equal(t, 1, store.Watchers(), "only the conversation list is still watched")
}

func TestEngine_StopClosesMessageStreams(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := NewEngine(store, logging.Discard())
	require.NoError(t, e.Start(ctx, cred(1)))

	ms1, err := e.OpenConversation(ctx, "1_2")
	require.NoError(t, err)
	ms2, err := e.OpenConversation(ctx, "1_3")
	require.NoError(t, err)

	e.Stop()
	assert.Equal(t, StateUnsubscribed, ms1.State())
	assert.Equal(t, StateUnsubscribed, ms2.State())
	assert.Zero(t, store.Watchers())
}

// failingStore hands out conversation subscriptions the test controls.
type failingStore struct {
	*memory.Store
	sub *stream.Subscription[[]models.Conversation]
}

func (f *failingStore) WatchConversations(ctx context.Context, participant string) (*stream.Subscription[[]models.Conversation], error) {
	f.sub = stream.New[[]models.Conversation](stream.Latest, nil)
	return f.sub, nil
}

func TestEngine_SubscriptionErrorKeepsLastSnapshot(t *testing.T) {
	fs := &failingStore{Store: memory.New()}
	e := NewEngine(fs, logging.Discard())
	require.NoError(t, e.Start(context.Background(), cred(1)))
	defer e.Stop()

	fs.sub.Publish([]models.Conversation{{ID: "1_2", Participants: []string{"1", "2"}}})
	require.Eventually(t, func() bool { return len(e.Conversations()) == 1 }, waitFor, tick)

	boom := errors.New("permission denied")
	fs.sub.Fail(boom)
	require.Eventually(t, func() bool { return e.LastError() != nil }, waitFor, tick)
	assert.ErrorIs(t, e.LastError(), boom)
	assert.Len(t, e.Conversations(), 1)
	assert.Equal(t, StateActive, e.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "subscribing", StateSubscribing.String())
	assert.Equal(t, "state(9)", State(9).String())
}
