// Package urlsync projects filter state onto a shareable query string.
//
// The location is read once, when the feed mounts. After that it is written
// only, and only when the encoded state differs from what it already holds.
package urlsync

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"tyres_bot/internal/filter"
	"tyres_bot/internal/model"
)

// Encode returns the canonical query for filters and sort: fields in
// canonical order, empty values skipped, and the sort key present only
// when it is not the default.
func Encode(f model.Filters, sort model.SortKey) string {
	var b strings.Builder
	add := func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	for _, k := range model.Fields() {
		if v := f[k]; v != "" {
			add(string(k), v)
		}
	}
	if sort != model.DefaultSort {
		add("sort", string(sort))
	}
	return b.String()
}

// Decode reads recognised non-empty fields and a valid sort key from a
// query string. Anything else is ignored.
func Decode(query string) filter.Seed {
	values, _ := url.ParseQuery(strings.TrimPrefix(query, "?"))

	seed := filter.Seed{Filters: model.Filters{}}
	for _, k := range model.Fields() {
		if v := values.Get(string(k)); v != "" {
			seed.Filters[k] = v
		}
	}
	if values.Has("sort") {
		if s, ok := model.ParseSort(values.Get("sort")); ok {
			seed.Sort, seed.HasSort = s, true
		}
	}
	return seed
}

// Location holds the current query string of the page showing the feed.
type Location interface {
	Query() string
	Replace(query string)
}

// Synchronizer keeps a Location in step with a filter.State.
type Synchronizer struct {
	loc Location
}

// New creates a Synchronizer over loc.
func New(loc Location) *Synchronizer {
	return &Synchronizer{loc: loc}
}

// Mount seeds state from the location. It is the only read of the location.
func (s *Synchronizer) Mount(ctx context.Context, state *filter.State, policy filter.Policy) {
	state.Seed(ctx, Decode(s.loc.Query()), policy)
}

// Sync writes the encoded state to the location and reports whether it
// changed anything.
func (s *Synchronizer) Sync(f model.Filters, sort model.SortKey) bool {
	q := Encode(f, sort)
	if q == s.loc.Query() {
		return false
	}
	s.loc.Replace(q)
	return true
}

// Link returns the shareable URL for the location under base.
func (s *Synchronizer) Link(base string) string {
	q := s.loc.Query()
	if q == "" {
		return base
	}
	return base + "?" + q
}

// MemLocation is a Location held in memory. It counts writes.
type MemLocation struct {
	mu     sync.Mutex
	query  string
	writes int
}

// NewMemLocation creates a MemLocation holding query.
func NewMemLocation(query string) *MemLocation {
	return &MemLocation{query: strings.TrimPrefix(query, "?")}
}

// Query returns the current query string.
func (l *MemLocation) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Replace sets the query string.
func (l *MemLocation) Replace(query string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = query
	l.writes++
}

// Writes returns how many times Replace was called.
func (l *MemLocation) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// QueryFromLink extracts the query string from a shared link. A bare query
// string is returned as is.
func QueryFromLink(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '?'); i >= 0 {
		link = link[i+1:]
	} else if strings.Contains(link, "://") {
		return ""
	}
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return link
}
