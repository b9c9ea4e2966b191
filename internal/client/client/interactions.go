package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type snapAction struct {
	UserID int64  `json:"user_id"`
	SnapID string `json:"snap_id"`
}

type followAction struct {
	FollowerID int64 `json:"follower_id"`
	FollowedID int64 `json:"followed_id"`
}

// InteractionsClient talks to the likes/shares/follows service. The
// service does not authenticate; ids are trusted as given.
type InteractionsClient struct {
	rest rest
}

func NewInteractionsClient(baseURL string, timeout time.Duration) *InteractionsClient {
	return &InteractionsClient{rest: newRest(baseURL, timeout, nil)}
}

func (c *InteractionsClient) Like(ctx context.Context, user int64, snap string) error {
	return c.rest.call(ctx, http.MethodPost, "/likes", nil, snapAction{user, snap}, nil, false)
}

func (c *InteractionsClient) Unlike(ctx context.Context, user int64, snap string) error {
	return c.rest.call(ctx, http.MethodDelete, "/likes", snapQuery(user, snap), nil, nil, false)
}

func (c *InteractionsClient) Share(ctx context.Context, user int64, snap string) error {
	return c.rest.call(ctx, http.MethodPost, "/shares", nil, snapAction{user, snap}, nil, false)
}

func (c *InteractionsClient) Unshare(ctx context.Context, user int64, snap string) error {
	return c.rest.call(ctx, http.MethodDelete, "/shares", snapQuery(user, snap), nil, nil, false)
}

func (c *InteractionsClient) Follow(ctx context.Context, follower, followed int64) error {
	if follower == followed {
		return invalid("cannot follow yourself")
	}
	return c.rest.call(ctx, http.MethodPost, "/follows", nil, followAction{follower, followed}, nil, false)
}

func (c *InteractionsClient) Unfollow(ctx context.Context, follower, followed int64) error {
	q := url.Values{
		"follower_id": {strconv.FormatInt(follower, 10)},
		"followed_id": {strconv.FormatInt(followed, 10)},
	}
	return c.rest.call(ctx, http.MethodDelete, "/follows", q, nil, nil, false)
}

// Likes lists the snap ids user has liked.
func (c *InteractionsClient) Likes(ctx context.Context, user int64) ([]string, error) {
	var out []string
	err := c.rest.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/likes", user), nil, nil, &out, false)
	return out, err
}

// Shares lists the snap ids user has shared.
func (c *InteractionsClient) Shares(ctx context.Context, user int64) ([]string, error) {
	var out []string
	err := c.rest.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/shares", user), nil, nil, &out, false)
	return out, err
}

// Follows lists the ids user follows.
func (c *InteractionsClient) Follows(ctx context.Context, user int64) ([]int64, error) {
	var out []int64
	err := c.rest.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/follows", user), nil, nil, &out, false)
	return out, err
}

// Followers lists the ids following user.
func (c *InteractionsClient) Followers(ctx context.Context, user int64) ([]int64, error) {
	var out []int64
	err := c.rest.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/followers", user), nil, nil, &out, false)
	return out, err
}

func snapQuery(user int64, snap string) url.Values {
	return url.Values{"user_id": {strconv.FormatInt(user, 10)}, "snap_id": {snap}}
}
