package app

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/docstore/memory"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/client/notify"
	"github.com/dmitrijs2005/snapclient/internal/client/realtime"
	"github.com/dmitrijs2005/snapclient/internal/client/session"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
	"github.com/dmitrijs2005/snapclient/internal/stream"
)

// memBackend is a memory store plus a controllable push feed.
type memBackend struct {
	*memory.Store
	mu     sync.Mutex
	sub    *stream.Subscription[models.PushMessage]
	convs  *stream.Subscription[[]models.Conversation]
	closed bool
}

func (b *memBackend) WatchConversations(ctx context.Context, participant string) (*stream.Subscription[[]models.Conversation], error) {
	sub, err := b.Store.WatchConversations(ctx, participant)
	b.mu.Lock()
	b.convs = sub
	b.mu.Unlock()
	return sub, err
}

func (b *memBackend) failConversations(err error) {
	b.mu.Lock()
	sub := b.convs
	b.mu.Unlock()
	sub.Fail(err)
}

func (b *memBackend) Token(context.Context) (string, error) { return "device", nil }

func (b *memBackend) Subscribe(context.Context) (*stream.Subscription[models.PushMessage], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub = stream.New[models.PushMessage](stream.Queue, nil)
	return b.sub, nil
}

func (b *memBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *memBackend) push(m models.PushMessage) bool {
	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	return sub.Publish(m)
}

type fakeProfiles struct {
	profile *models.Profile
	err     error
}

func (f *fakeProfiles) Profile(context.Context) (*models.Profile, error) { return f.profile, f.err }

type fixture struct {
	rt       *Runtime
	sessions *session.Store
	store    *memory.Store
	profiles *fakeProfiles
	backends []*memBackend
	connErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{store: memory.New(), profiles: &fakeProfiles{}}
	f.sessions = session.New(db)
	connect := func(ctx context.Context, cred *models.Credential) (Backend, error) {
		if f.connErr != nil {
			return nil, f.connErr
		}
		b := &memBackend{Store: f.store}
		f.backends = append(f.backends, b)
		return b, nil
	}
	f.rt = NewRuntime(f.sessions, f.profiles, connect, notify.StaticPermission(true),
		notify.NewWriterDisplayer(&bytes.Buffer{}), logging.Discard())
	t.Cleanup(f.rt.Close)
	return f
}

func credFor(id int64, name string) *models.Credential {
	return &models.Credential{Token: "tok-" + name, User: &models.Profile{ID: id, Username: name}}
}

func TestRuntime_LoginStartsAndLogoutDisposes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))
	assert.Nil(t, f.rt.Engine())

	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	engine := f.rt.Engine()
	require.NotNil(t, engine)
	require.Eventually(t, func() bool { return engine.State() == realtime.StateActive }, time.Second, 5*time.Millisecond)
	ch := f.rt.Notifications()
	require.NotNil(t, ch)
	assert.Equal(t, "device", ch.Token())

	b := f.backends[0]
	require.True(t, b.push(models.PushMessage{Title: "hi", Data: map[string]string{models.DataKeyPostID: "42"}}))
	require.Eventually(t, func() bool { return len(ch.Records()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.sessions.Logout(ctx))
	assert.Nil(t, f.rt.Engine())
	assert.Nil(t, f.rt.Notifications())
	assert.Equal(t, realtime.StateUnsubscribed, engine.State())
	assert.True(t, b.closed)
	assert.Empty(t, ch.Records(), "records are dropped on logout")
	assert.False(t, b.push(models.PushMessage{Title: "late"}))
	assert.Zero(t, f.store.Watchers())
}

func TestRuntime_NoLeakAcrossUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))

	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	f.backends[0].push(models.PushMessage{Title: "for ana"})
	require.Eventually(t, func() bool { return len(f.rt.Notifications().Records()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.sessions.Login(ctx, credFor(2, "bo")))
	require.Len(t, f.backends, 2)
	assert.True(t, f.backends[0].closed)
	assert.Empty(t, f.rt.Notifications().Records())
	assert.Equal(t, "2", f.rt.Engine().User())
}

func TestRuntime_RebuildsFailedEngineForSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))
	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	dead := f.rt.Engine()

	f.backends[0].failConversations(common.ErrorUnavailable)
	require.Eventually(t, func() bool { return dead.LastError() != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	require.Len(t, f.backends, 2)
	assert.True(t, f.backends[0].closed)
	require.NotNil(t, f.rt.Engine())
	assert.NotSame(t, dead, f.rt.Engine())
	assert.NoError(t, f.rt.Engine().LastError())
}

func TestRuntime_RestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	assert.Nil(t, f.rt.Engine(), "not observing yet")

	require.NoError(t, f.rt.Start(ctx))
	require.NotNil(t, f.rt.Engine())
	assert.Equal(t, "1", f.rt.Engine().User())
}

func TestRuntime_ConnectFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.connErr = common.ErrorUnavailable
	require.NoError(t, f.rt.Start(ctx))

	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	assert.NotNil(t, f.sessions.Current())
	assert.Nil(t, f.rt.Engine())
	assert.ErrorIs(t, f.rt.InitError(), common.ErrorUnavailable)
}

func TestRuntime_HandleErrorLogsOutOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))
	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))

	other := errors.New("boom")
	assert.Same(t, other, f.rt.HandleError(ctx, other))
	assert.NotNil(t, f.sessions.Current())

	err := &client.APIError{Status: 401, Message: "expired"}
	assert.ErrorIs(t, f.rt.HandleError(ctx, err), common.ErrorUnauthorized)
	assert.Nil(t, f.sessions.Current())
	assert.Nil(t, f.rt.Engine())
}

func TestRuntime_HandleErrorKeepsSessionOnForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))
	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	engine := f.rt.Engine()

	err := f.rt.HandleError(ctx, &client.APIError{Status: 403, Message: "profile is private"})
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, common.CategoryOther, common.Category(err))
	assert.NotNil(t, f.sessions.Current())
	assert.Same(t, engine, f.rt.Engine())
}

func TestRuntime_RefreshProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.rt.Start(ctx))

	_, err := f.rt.RefreshProfile(ctx)
	require.ErrorIs(t, err, common.ErrorNoSession)

	require.NoError(t, f.sessions.Login(ctx, credFor(1, "ana")))
	engine := f.rt.Engine()

	f.profiles.profile = &models.Profile{ID: 1, Username: "ana2", Verification: models.VerificationVerified}
	p, err := f.rt.RefreshProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana2", p.Username)
	assert.Equal(t, "ana2", f.sessions.Current().User.Username)
	assert.Same(t, engine, f.rt.Engine(), "profile refresh keeps the realtime session")

	f.profiles.err = &client.APIError{Status: 401}
	_, err = f.rt.RefreshProfile(ctx)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Nil(t, f.sessions.Current())
}
