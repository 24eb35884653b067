// Package feed accumulates server-paginated listings into one ordered,
// deduplicated feed and decides when the next page may be requested.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"tyres_bot/internal/model"
)

// Source returns one page of listings for a request.
type Source interface {
	FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error)
}

// Status is the accumulator's position in its state machine.
type Status int

// Accumulator states.
const (
	Idle Status = iota
	LoadingInitial
	LoadingMore
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingInitial:
		return "loading initial"
	case LoadingMore:
		return "loading more"
	case Error:
		return "error"
	}
	return "unknown"
}

// Snapshot is a copy of the feed state at one point in time.
type Snapshot struct {
	Query       model.Query
	Items       []model.Tyre
	CurrentPage int
	HasMore     bool
	Total       int
	Status      Status
	LastError   error
	Generation  uint64
	// Added is the number of trailing Items appended by the transition
	// that produced this snapshot.
	Added int
}

// Accumulator owns the feed state. Only its own methods and the
// completions of fetches it issued change it.
type Accumulator struct {
	src      Source
	pageSize int
	log      *slog.Logger

	mu      sync.Mutex
	gen     uint64
	query   model.Query
	items   []model.Tyre
	seen    map[string]struct{}
	page    int
	hasMore bool
	total   int
	status  Status
	lastErr error

	onChange func(Snapshot)
	onError  func(err error, initial bool)

	notifyMu  sync.Mutex
	delivered uint64
	wg        sync.WaitGroup
}

// NewAccumulator creates an idle, empty Accumulator.
func NewAccumulator(src Source, pageSize int, log *slog.Logger) *Accumulator {
	if pageSize < 1 {
		pageSize = model.DefaultPageSize
	}
	return &Accumulator{
		src:      src,
		pageSize: pageSize,
		log:      log,
		seen:     make(map[string]struct{}),
		page:     1,
	}
}

// OnChange registers fn to receive a snapshot after every applied transition.
// Observers run one at a time and must not call back into the Accumulator.
func (a *Accumulator) OnChange(fn func(Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// OnError registers fn to receive fetch failures. initial is true when the
// failed fetch was for page 1.
func (a *Accumulator) OnError(fn func(err error, initial bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

// Reset starts a new generation for q: the feed is emptied and page 1 is
// fetched. Any fetch still in flight is superseded.
func (a *Accumulator) Reset(ctx context.Context, q model.Query) {
	a.mu.Lock()
	a.gen++
	a.query = model.Query{Filters: q.Filters.Clone(), Sort: q.Sort}
	a.items = nil
	a.seen = make(map[string]struct{})
	a.page = 1
	a.hasMore = false
	a.total = 0
	a.status = LoadingInitial
	a.lastErr = nil
	gen := a.gen
	req := a.requestLocked(1)
	snap := a.snapshotLocked(0)
	onChange := a.onChange
	a.wg.Add(1)
	a.mu.Unlock()

	a.log.Debug("reset feed", "generation", gen, "sort", q.Sort)
	a.notify(onChange, nil, snap, nil, true)
	go a.fetch(ctx, gen, req, true)
}

// Retry re-runs the initial load for the current query.
func (a *Accumulator) Retry(ctx context.Context) {
	a.mu.Lock()
	q := a.query
	a.mu.Unlock()
	a.Reset(ctx, q)
}

// RequestNextPage fetches the page after the current one. It does nothing
// and returns false unless the feed is idle and has more pages.
func (a *Accumulator) RequestNextPage(ctx context.Context) bool {
	a.mu.Lock()
	if a.status != Idle || !a.hasMore {
		a.mu.Unlock()
		return false
	}
	a.status = LoadingMore
	gen := a.gen
	req := a.requestLocked(a.page + 1)
	snap := a.snapshotLocked(0)
	onChange := a.onChange
	a.wg.Add(1)
	a.mu.Unlock()

	a.log.Debug("request next page", "generation", gen, "page", req.Page)
	a.notify(onChange, nil, snap, nil, false)
	go a.fetch(ctx, gen, req, false)
	return true
}

// CanLoadMore reports whether RequestNextPage would issue a fetch.
func (a *Accumulator) CanLoadMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status == Idle && a.hasMore
}

// Snapshot returns a copy of the current state.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(0)
}

// Wait blocks until no fetch is in flight.
func (a *Accumulator) Wait() {
	a.wg.Wait()
}

func (a *Accumulator) fetch(ctx context.Context, gen uint64, req model.PageRequest, initial bool) {
	defer a.wg.Done()
	page, err := a.src.FetchPage(ctx, req)
	a.apply(gen, req, page, err, initial)
}

func (a *Accumulator) apply(gen uint64, req model.PageRequest, page model.Page, err error, initial bool) {
	a.mu.Lock()
	if gen != a.gen {
		current := a.gen
		a.mu.Unlock()
		a.log.Debug("discard stale page", "generation", gen, "current", current, "page", req.Page)
		return
	}

	added := 0
	switch {
	case err != nil && initial:
		a.status = Error
		a.lastErr = err
	case err != nil:
		// The page is not advanced, so the next request asks for it again.
		a.status = Idle
		a.lastErr = err
	default:
		added = a.appendLocked(page.Items)
		a.page = req.Page
		a.total = page.Total
		a.hasMore = len(page.Items) == a.pageSize && a.page*a.pageSize < a.total
		a.status = Idle
		a.lastErr = nil
	}

	snap := a.snapshotLocked(added)
	onChange, onError := a.onChange, a.onError
	a.mu.Unlock()

	if err != nil {
		a.log.Warn("fetch page", "generation", gen, "page", req.Page, "error", err)
	}
	a.notify(onChange, onError, snap, err, initial)
}

// appendLocked adds items whose id is not already in the feed.
func (a *Accumulator) appendLocked(items []model.Tyre) int {
	n := 0
	for _, it := range items {
		if _, dup := a.seen[it.ID]; dup {
			continue
		}
		a.seen[it.ID] = struct{}{}
		a.items = append(a.items, it)
		n++
	}
	return n
}

func (a *Accumulator) requestLocked(page int) model.PageRequest {
	return model.PageRequest{
		Filters: a.query.Filters.Clone(),
		Sort:    a.query.Sort,
		Page:    page,
		Limit:   a.pageSize,
	}
}

func (a *Accumulator) snapshotLocked(added int) Snapshot {
	items := make([]model.Tyre, len(a.items))
	copy(items, a.items)
	return Snapshot{
		Query:       model.Query{Filters: a.query.Filters.Clone(), Sort: a.query.Sort},
		Items:       items,
		CurrentPage: a.page,
		HasMore:     a.hasMore,
		Total:       a.total,
		Status:      a.status,
		LastError:   a.lastErr,
		Generation:  a.gen,
		Added:       added,
	}
}

// notify delivers snap to the observers. A completion that lost the race
// against a newer Reset is dropped, so observers never go back a generation.
func (a *Accumulator) notify(onChange func(Snapshot), onError func(error, bool), snap Snapshot, err error, initial bool) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if snap.Generation < a.delivered {
		a.log.Debug("drop stale notification", "generation", snap.Generation, "delivered", a.delivered)
		return
	}
	a.delivered = snap.Generation
	if onChange != nil {
		onChange(snap)
	}
	if err != nil && onError != nil {
		onError(err, initial)
	}
}
