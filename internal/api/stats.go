package api

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"tyres_bot/internal/model"
)

// AdminStats loads the dashboard summary and its four breakdowns
// concurrently. The first failure cancels the rest.
func (c *Client) AdminStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/admin/stats", nil, nil, &stats)
	})

	var listings, users []model.DailyCount
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/admin/stats/daily-listings", nil, nil, &listings)
	})
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/admin/stats/daily-users", nil, nil, &users)
	})

	var categories, statuses []model.NamedCount
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/admin/stats/listing-categories", nil, nil, &categories)
	})
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/admin/stats/listing-status", nil, nil, &statuses)
	})

	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	stats.DailyListings = listings
	stats.DailyUsers = users
	stats.ListingCategories = categories
	stats.ListingStatus = statuses
	return stats, nil
}
