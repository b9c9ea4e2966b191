package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
)

// StatsClient reads aggregate counters from the statistics service.
type StatsClient struct {
	rest rest
}

func NewStatsClient(baseURL string, timeout time.Duration) *StatsClient {
	return &StatsClient{rest: newRest(baseURL, timeout, nil)}
}

func (c *StatsClient) SnapStats(ctx context.Context, snap string) (*models.SnapStats, error) {
	var s models.SnapStats
	if err := c.rest.call(ctx, http.MethodGet, "/stats/snaps/"+url.PathEscape(snap), nil, nil, &s, false); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *StatsClient) UserStats(ctx context.Context, user int64) (*models.UserStats, error) {
	var s models.UserStats
	if err := c.rest.call(ctx, http.MethodGet, fmt.Sprintf("/stats/users/%d", user), nil, nil, &s, false); err != nil {
		return nil, err
	}
	return &s, nil
}
