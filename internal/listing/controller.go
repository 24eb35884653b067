// Package listing composes filter state, persistence, link sync, debouncing
// and the paged feed into one controller per viewer.
package listing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tyres_bot/internal/feed"
	"tyres_bot/internal/filter"
	"tyres_bot/internal/model"
	"tyres_bot/internal/urlsync"
)

// Options tunes a Controller.
type Options struct {
	PageSize  int
	Debounce  time.Duration
	Threshold float64
	Policy    filter.Policy
}

// DefaultOptions mirrors the web client: 6 per page, 500ms quiet interval,
// half-visible sentinel, saved filters kept on a bare link.
func DefaultOptions() Options {
	return Options{
		PageSize:  model.DefaultPageSize,
		Debounce:  500 * time.Millisecond,
		Threshold: feed.DefaultThreshold,
		Policy:    filter.KeepPersisted,
	}
}

// Controller drives one listing feed. Filter edits update the link at once
// and refetch page 1 after the debounce interval.
type Controller struct {
	opts  Options
	log   *slog.Logger
	state *filter.State
	sync  *urlsync.Synchronizer
	acc   *feed.Accumulator
	trig  *feed.Trigger
	deb   *feed.Debouncer

	mu       sync.Mutex
	ctx      context.Context
	onChange func(feed.Snapshot)
	onError  func(err error, initial bool)
}

// New wires a Controller. Nothing is fetched until Mount.
func New(src feed.Source, persist filter.Persister, loc urlsync.Location, opts Options, log *slog.Logger) *Controller {
	c := &Controller{
		opts:  opts,
		log:   log,
		state: filter.New(persist),
		sync:  urlsync.New(loc),
		acc:   feed.NewAccumulator(src, opts.PageSize, log),
		deb:   feed.NewDebouncer(opts.Debounce),
		ctx:   context.Background(),
	}
	c.trig = feed.NewTrigger(c.acc, opts.Threshold)

	c.state.OnChange(c.filtersChanged)
	c.acc.OnChange(c.feedChanged)
	c.acc.OnError(c.feedFailed)
	return c
}

// OnChange registers fn to receive every applied feed transition.
func (c *Controller) OnChange(fn func(feed.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// OnError registers fn to receive fetch failures.
func (c *Controller) OnError(fn func(err error, initial bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Mount seeds the filters from the link, normalises the link and fetches
// page 1 immediately. ctx bounds every fetch the controller issues later.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.sync.Mount(ctx, c.state, c.opts.Policy)
	q := c.state.Snapshot()
	c.sync.Sync(q.Filters, q.Sort)
	c.log.Debug("mount feed", "filters", len(q.Filters.NonEmpty()), "sort", q.Sort)
	c.acc.Reset(ctx, q)
}

// SetFilter changes one filter field.
func (c *Controller) SetFilter(ctx context.Context, key, value string) error {
	return c.state.Set(ctx, key, value)
}

// SetSort changes the sort key.
func (c *Controller) SetSort(ctx context.Context, key string) error {
	return c.state.SetSort(ctx, key)
}

// Reset clears every filter and restores the default sort.
func (c *Controller) Reset(ctx context.Context) {
	c.state.Reset(ctx)
}

// Flush applies a pending debounced refetch now and reports whether there was one.
func (c *Controller) Flush() bool {
	return c.deb.Flush()
}

// More reports the end of the feed fully visible.
func (c *Controller) More(ctx context.Context) bool {
	return c.Visible(ctx, 1)
}

// Visible reports that ratio of the end-of-feed sentinel is visible.
func (c *Controller) Visible(ctx context.Context, ratio float64) bool {
	return c.trig.Visible(ctx, ratio)
}

// Retry reloads page 1 for the current filters.
func (c *Controller) Retry(ctx context.Context) {
	c.acc.Retry(ctx)
}

// Snapshot returns the current feed state.
func (c *Controller) Snapshot() feed.Snapshot {
	return c.acc.Snapshot()
}

// Query returns the current filters and sort.
func (c *Controller) Query() model.Query {
	return c.state.Snapshot()
}

// Link returns the shareable link for the current filters.
func (c *Controller) Link(base string) string {
	return c.sync.Link(base)
}

// Wait blocks until no fetch is in flight.
func (c *Controller) Wait() {
	c.acc.Wait()
}

// Close cancels a pending refetch and waits for fetches in flight.
func (c *Controller) Close() {
	c.deb.Stop()
	c.acc.Wait()
}

func (c *Controller) filtersChanged(q model.Query) {
	c.sync.Sync(q.Filters, q.Sort)
	c.deb.Trigger(func() {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		c.acc.Reset(ctx, q)
	})
}

func (c *Controller) feedChanged(s feed.Snapshot) {
	if s.Status != feed.LoadingMore {
		c.trig.Settle()
	}
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *Controller) feedFailed(err error, initial bool) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err, initial)
	}
}
