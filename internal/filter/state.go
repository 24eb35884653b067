// Package filter owns the current filter values and sort key of a listing feed.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"tyres_bot/internal/model"
)

var (
	// ErrInvalidKey is returned for a filter field outside the fixed set.
	ErrInvalidKey = errors.New("invalid filter key")
	// ErrInvalidSort is returned for a sort key outside the enumeration.
	ErrInvalidSort = errors.New("invalid sort key")
)

// Persister stores the filter map between sessions.
type Persister interface {
	Save(ctx context.Context, f model.Filters)
	Load(ctx context.Context) (model.Filters, bool)
	Clear(ctx context.Context)
}

// Policy decides what startup does when the link carries no filter fields.
type Policy int

const (
	// KeepPersisted keeps the saved filters of a returning user.
	KeepPersisted Policy = iota
	// ResetOnBareURL discards saved filters, as if the user pressed reset.
	ResetOnBareURL
)

// Seed is the startup input read from a link.
type Seed struct {
	// Filters holds only the fields present in the link.
	Filters model.Filters
	Sort    model.SortKey
	HasSort bool
}

// State holds the filters and sort of one feed. It is the only writer of
// both; readers get copies through Snapshot.
type State struct {
	store Persister

	mu       sync.Mutex
	filters  model.Filters
	sort     model.SortKey
	onChange func(model.Query)
}

// New creates a State with every field unset and the default sort.
func New(store Persister) *State {
	return &State{
		store:   store,
		filters: model.EmptyFilters(),
		sort:    model.DefaultSort,
	}
}

// OnChange registers fn to run after every effective change.
func (s *State) OnChange(fn func(model.Query)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Set updates one filter field. Leading whitespace is trimmed. Setting the
// current value again does nothing.
func (s *State) Set(ctx context.Context, key, value string) error {
	field, ok := model.ParseField(key)
	if !ok {
		return fmt.Errorf("set %q: %w", key, ErrInvalidKey)
	}
	value = normalize(value)

	s.mu.Lock()
	if s.filters[field] == value {
		s.mu.Unlock()
		return nil
	}
	s.filters[field] = value
	saved := s.filters.Clone()
	q, fn := s.queryLocked(), s.onChange
	s.mu.Unlock()

	s.store.Save(ctx, saved)
	notify(fn, q)
	return nil
}

// SetSort changes the sort key. Setting the current key again does nothing.
func (s *State) SetSort(_ context.Context, value string) error {
	key, ok := model.ParseSort(value)
	if !ok {
		return fmt.Errorf("sort %q: %w", value, ErrInvalidSort)
	}

	s.mu.Lock()
	if s.sort == key {
		s.mu.Unlock()
		return nil
	}
	s.sort = key
	q, fn := s.queryLocked(), s.onChange
	s.mu.Unlock()

	notify(fn, q)
	return nil
}

// Reset clears every field, restores the default sort and forgets the
// persisted filters.
func (s *State) Reset(ctx context.Context) {
	s.mu.Lock()
	s.resetLocked()
	q, fn := s.queryLocked(), s.onChange
	s.mu.Unlock()

	s.store.Clear(ctx)
	notify(fn, q)
}

// Seed initialises the state at startup. Fields present in the link win
// over persisted values field by field. Seeding does not notify.
func (s *State) Seed(ctx context.Context, seed Seed, policy Policy) {
	fromLink := len(seed.Filters) > 0

	if !fromLink && policy == ResetOnBareURL {
		s.mu.Lock()
		s.resetLocked()
		if seed.HasSort {
			s.sort = seed.Sort
		}
		s.mu.Unlock()
		s.store.Clear(ctx)
		return
	}

	persisted, ok := s.store.Load(ctx)

	s.mu.Lock()
	s.filters = model.EmptyFilters()
	if ok {
		for _, f := range model.Fields() {
			s.filters[f] = persisted[f]
		}
	}
	for f, v := range seed.Filters {
		if _, known := model.ParseField(string(f)); known {
			s.filters[f] = normalize(v)
		}
	}
	s.sort = model.DefaultSort
	if seed.HasSort {
		s.sort = seed.Sort
	}
	saved := s.filters.Clone()
	s.mu.Unlock()

	if fromLink {
		s.store.Save(ctx, saved)
	}
}

// Snapshot returns a copy of the current filters and sort.
func (s *State) Snapshot() model.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked()
}

func (s *State) resetLocked() {
	s.filters = model.EmptyFilters()
	s.sort = model.DefaultSort
}

func (s *State) queryLocked() model.Query {
	return model.Query{Filters: s.filters.Clone(), Sort: s.sort}
}

func notify(fn func(model.Query), q model.Query) {
	if fn != nil {
		fn(q)
	}
}

func normalize(v string) string {
	return strings.TrimLeftFunc(v, unicode.IsSpace)
}
