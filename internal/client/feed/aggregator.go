// Package feed assembles feed pages from the posts, interactions and user
// services.
package feed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
)

// DefaultPageSize is used when Page is called with limit <= 0.
const DefaultPageSize = 20

type Posts interface {
	Feed(ctx context.Context, viewer int64, offset, limit int) ([]models.Post, error)
	UserFeed(ctx context.Context, owner, viewer int64, offset, limit int) ([]models.Post, error)
}

type Interactions interface {
	Likes(ctx context.Context, user int64) ([]string, error)
	Shares(ctx context.Context, user int64) ([]string, error)
}

type Users interface {
	UsersByIDs(ctx context.Context, ids []int64) ([]models.Profile, error)
}

type Aggregator struct {
	posts        Posts
	interactions Interactions
	users        Users
	log          logging.Logger
	pageSize     int
}

func NewAggregator(posts Posts, interactions Interactions, users Users, l logging.Logger, pageSize int) *Aggregator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{
		posts:        posts,
		interactions: interactions,
		users:        users,
		log:          l.With("module", "feed"),
		pageSize:     pageSize,
	}
}

func (a *Aggregator) PageSize() int { return a.pageSize }

// Page loads one window of the feed as seen by viewer. owner selects a
// single author's feed; 0 means the global feed. Failed overlay lookups
// degrade to defaults: an "Unknown" username and unset like/share flags.
func (a *Aggregator) Page(ctx context.Context, viewer, owner int64, offset, limit int) (*models.FeedPage, error) {
	if limit <= 0 {
		limit = a.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	var posts []models.Post
	var err error
	if owner == 0 {
		posts, err = a.posts.Feed(ctx, viewer, offset, limit)
	} else {
		posts, err = a.posts.UserFeed(ctx, owner, viewer, offset, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}

	var (
		liked, shared map[string]bool
		names         map[int64]string
	)

	// A failed overlay leaves the others running.
	var g errgroup.Group
	g.Go(func() (err error) {
		liked, err = idSet(ctx, viewer, a.interactions.Likes)
		if err != nil {
			return fmt.Errorf("likes: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		shared, err = idSet(ctx, viewer, a.interactions.Shares)
		if err != nil {
			return fmt.Errorf("shares: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		names, err = a.usernames(ctx, authors(posts))
		if err != nil {
			return fmt.Errorf("authors: %w", err)
		}
		return nil
	})
	overlayErr := g.Wait()
	if overlayErr != nil {
		a.log.Warn(ctx, "feed overlay unavailable", "error", overlayErr)
	}

	items := make([]models.FeedItem, len(posts))
	for i, p := range posts {
		name, ok := names[p.UserID]
		if !ok || name == "" {
			name = common.UnknownUsername
		}
		items[i] = models.FeedItem{
			Post:     p,
			Username: name,
			Liked:    liked[p.ID],
			Shared:   shared[p.ID],
			Editable: p.UserID == viewer,
		}
	}

	return &models.FeedPage{
		Items:   items,
		Offset:  offset,
		Limit:   limit,
		More:    len(posts) == limit,
		Partial: overlayErr != nil,
	}, nil
}

func idSet(ctx context.Context, viewer int64, fetch func(context.Context, int64) ([]string, error)) (map[string]bool, error) {
	ids, err := fetch(ctx, viewer)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (a *Aggregator) usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	profiles, err := a.users.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p.Username
	}
	return out, nil
}

// authors returns the distinct author ids in first-seen order.
func authors(posts []models.Post) []int64 {
	seen := make(map[int64]bool, len(posts))
	var out []int64
	for _, p := range posts {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			out = append(out, p.UserID)
		}
	}
	return out
}
