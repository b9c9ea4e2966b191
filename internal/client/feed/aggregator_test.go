package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
)

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAggregator_PageAgainstServices(t *testing.T) {
	var idsQuery string

	r := chi.NewRouter()
	r.Get("/feed", func(w http.ResponseWriter, req *http.Request) {
		respond(w, []models.Post{
			{ID: "s1", UserID: 7, Message: "mine"},
			{ID: "s2", UserID: 2, Message: "theirs"},
			{ID: "s3", UserID: 2, Message: "theirs again"},
		})
	})
	r.Get("/users/{id}/likes", func(w http.ResponseWriter, req *http.Request) { respond(w, []string{"s2"}) })
	r.Get("/users/{id}/shares", func(w http.ResponseWriter, req *http.Request) { respond(w, []string{"s3"}) })
	r.Get("/users/users", func(w http.ResponseWriter, req *http.Request) {
		idsQuery = req.URL.Query().Get("ids")
		respond(w, []models.Profile{{ID: 7, Username: "me"}, {ID: 2, Username: "bo"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	posts := client.NewPostsClient(srv.URL, time.Second, nil)
	inter := client.NewInteractionsClient(srv.URL, time.Second)
	users := client.NewAuthClient(srv.URL, time.Second, func() string { return "tok" })
	a := NewAggregator(posts, inter, users, logging.Discard(), 3)

	page, err := a.Page(context.Background(), 7, 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Limit)
	assert.True(t, page.More)
	assert.Equal(t, "7,2", idsQuery, "authors are looked up once each")

	assert.Equal(t, "me", page.Items[0].Username)
	assert.True(t, page.Items[0].Editable)
	assert.False(t, page.Items[0].Liked)

	assert.Equal(t, "bo", page.Items[1].Username)
	assert.True(t, page.Items[1].Liked)
	assert.False(t, page.Items[1].Editable)

	assert.True(t, page.Items[2].Shared)
	assert.False(t, page.Items[2].Liked)
	assert.False(t, page.Partial)
}

type fakePosts struct {
	posts     []models.Post
	err       error
	lastOwner int64
}

func (f *fakePosts) Feed(_ context.Context, _ int64, _, _ int) ([]models.Post, error) {
	return f.posts, f.err
}

func (f *fakePosts) UserFeed(_ context.Context, owner, _ int64, _, _ int) ([]models.Post, error) {
	f.lastOwner = owner
	return f.posts, f.err
}

type failingInteractions struct{}

func (failingInteractions) Likes(context.Context, int64) ([]string, error) {
	return nil, common.ErrorUnavailable
}

func (failingInteractions) Shares(context.Context, int64) ([]string, error) {
	return nil, common.ErrorUnavailable
}

type failingUsers struct{ calls int }

func (f *failingUsers) UsersByIDs(context.Context, []int64) ([]models.Profile, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestAggregator_DegradesOnOverlayFailure(t *testing.T) {
	posts := &fakePosts{posts: []models.Post{{ID: "s1", UserID: 2}}}
	a := NewAggregator(posts, failingInteractions{}, &failingUsers{}, logging.Discard(), 0)
	assert.Equal(t, DefaultPageSize, a.PageSize())

	page, err := a.Page(context.Background(), 7, 2, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, common.UnknownUsername, page.Items[0].Username)
	assert.False(t, page.Items[0].Liked)
	assert.False(t, page.Items[0].Shared)
	assert.False(t, page.More)
	assert.True(t, page.Partial)
	assert.Equal(t, int64(2), posts.lastOwner)
}

func TestAggregator_FeedFailureIsReturned(t *testing.T) {
	posts := &fakePosts{err: common.ErrorUnavailable}
	a := NewAggregator(posts, failingInteractions{}, &failingUsers{}, logging.Discard(), 5)

	_, err := a.Page(context.Background(), 7, 0, 0, 0)
	require.ErrorIs(t, err, common.ErrorUnavailable)
}

func TestAggregator_EmptyPageSkipsUserLookup(t *testing.T) {
	users := &failingUsers{}
	a := NewAggregator(&fakePosts{}, failingInteractions{}, users, logging.Discard(), 5)

	page, err := a.Page(context.Background(), 7, 0, -3, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Offset)
	assert.Zero(t, users.calls)
	assert.True(t, page.Partial, "likes and shares still failed")
}
