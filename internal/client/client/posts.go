package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
)

// SnapInput is the body of a create or update call.
type SnapInput struct {
	UserID     int64             `json:"user_id"`
	Message    string            `json:"message"`
	Hashtags   []string          `json:"hashtags,omitempty"`
	Visibility models.Visibility `json:"visibility,omitempty"`
}

// PostsClient talks to the posts service.
type PostsClient struct {
	rest rest
}

func NewPostsClient(baseURL string, timeout time.Duration, token TokenSource) *PostsClient {
	return &PostsClient{rest: newRest(baseURL, timeout, token)}
}

func pageQuery(offset, limit int) url.Values {
	return url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
}

// Feed returns the global feed window as seen by viewer.
func (c *PostsClient) Feed(ctx context.Context, viewer int64, offset, limit int) ([]models.Post, error) {
	q := pageQuery(offset, limit)
	q.Set("viewer_id", strconv.FormatInt(viewer, 10))
	var out []models.Post
	if err := c.rest.call(ctx, http.MethodGet, "/feed", q, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// UserFeed returns owner's posts visible to viewer.
func (c *PostsClient) UserFeed(ctx context.Context, owner, viewer int64, offset, limit int) ([]models.Post, error) {
	var out []models.Post
	path := fmt.Sprintf("/users/owner/%d/viewer/%d/feed", owner, viewer)
	if err := c.rest.call(ctx, http.MethodGet, path, pageQuery(offset, limit), nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PostsClient) Create(ctx context.Context, in SnapInput) (*models.Post, error) {
	if err := ValidateSnap(in.Message); err != nil {
		return nil, err
	}
	var p models.Post
	if err := c.rest.call(ctx, http.MethodPost, "/snaps", nil, in, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *PostsClient) Update(ctx context.Context, id string, in SnapInput) (*models.Post, error) {
	if err := ValidateSnap(in.Message); err != nil {
		return nil, err
	}
	var p models.Post
	if err := c.rest.call(ctx, http.MethodPut, "/snaps/"+url.PathEscape(id), nil, in, &p, false); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *PostsClient) Delete(ctx context.Context, id string) error {
	return c.rest.call(ctx, http.MethodDelete, "/snaps/"+url.PathEscape(id), nil, nil, nil, false)
}

func (c *PostsClient) SearchText(ctx context.Context, text string) ([]models.Post, error) {
	return c.search(ctx, "text", text)
}

func (c *PostsClient) SearchHashtag(ctx context.Context, tag string) ([]models.Post, error) {
	return c.search(ctx, "hashtag", tag)
}

func (c *PostsClient) search(ctx context.Context, kind, q string) ([]models.Post, error) {
	if q == "" {
		return nil, invalid("search text is required")
	}
	var out []models.Post
	if err := c.rest.call(ctx, http.MethodGet, "/search/"+kind, url.Values{"q": {q}}, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}
