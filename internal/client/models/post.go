package models

import "time"

// Post is a Snap as served by the posts service.
type Post struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	Message    string     `json:"message"`
	Hashtags   []string   `json:"hashtags,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FeedItem is a Post with the viewer-specific overlay merged in. It is
// rebuilt on every feed load.
type FeedItem struct {
	Post
	Username string `json:"username"`
	Liked    bool   `json:"liked"`
	Shared   bool   `json:"shared"`
	Editable bool   `json:"editable"`
}

// FeedPage is one offset/limit window of a feed.
type FeedPage struct {
	Items  []FeedItem
	Offset int
	Limit  int
	// More is set when the backend returned a full page, hinting that
	// another one may follow.
	More bool
	// Partial is set when likes, shares or author names could not be
	// loaded and the items carry defaults for them.
	Partial bool
}

// SnapStats are the aggregate counters for one post.
type SnapStats struct {
	SnapID string `json:"snap_id"`
	Likes  int64  `json:"likes"`
	Shares int64  `json:"shares"`
}

// UserStats are the aggregate counters for one user.
type UserStats struct {
	UserID    int64 `json:"user_id"`
	Snaps     int64 `json:"snaps"`
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Likes     int64 `json:"likes"`
	Shares    int64 `json:"shares"`
}
