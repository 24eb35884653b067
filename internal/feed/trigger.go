package feed

import (
	"context"
	"sync/atomic"
)

// DefaultThreshold is the visible fraction of the sentinel that requests
// the next page.
const DefaultThreshold = 0.5

// Pager is the part of Accumulator the Trigger drives.
type Pager interface {
	CanLoadMore() bool
	RequestNextPage(ctx context.Context) bool
}

// Trigger turns sentinel visibility events into next-page requests. Its
// in-flight flag is set before the request is issued and stays set until
// Settle, so a burst of events yields at most one request.
type Trigger struct {
	pager     Pager
	threshold float64
	inFlight  atomic.Bool
}

// NewTrigger creates a Trigger. A threshold outside (0, 1] uses DefaultThreshold.
func NewTrigger(pager Pager, threshold float64) *Trigger {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Trigger{pager: pager, threshold: threshold}
}

// Visible reports that ratio of the sentinel is on screen. It returns true
// when a next-page request was issued.
func (t *Trigger) Visible(ctx context.Context, ratio float64) bool {
	if ratio < t.threshold {
		return false
	}
	if !t.pager.CanLoadMore() {
		return false
	}
	if !t.inFlight.CompareAndSwap(false, true) {
		return false
	}
	if !t.pager.RequestNextPage(ctx) {
		t.inFlight.Store(false)
		return false
	}
	return true
}

// Settle clears the in-flight flag once a page completion has been applied.
func (t *Trigger) Settle() {
	t.inFlight.Store(false)
}

// InFlight reports whether a request issued by the trigger is outstanding.
func (t *Trigger) InFlight() bool {
	return t.inFlight.Load()
}
