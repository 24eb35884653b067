package model

import "time"

// Tab groups a user's own listings on the My Ads view.
type Tab string

// Supported tabs.
const (
	TabActive    Tab = "active"
	TabExpired   Tab = "expired"
	TabDeleted   Tab = "deleted"
	TabFavorites Tab = "favorites"
)

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabActive, TabExpired, TabDeleted, TabFavorites:
		return t, true
	}
	return "", false
}

// Partition keeps the listings that belong on tab at now, preserving order.
// Favorites are fetched separately, so every item passes for that tab.
func Partition(items []Tyre, tab Tab, now time.Time) []Tyre {
	var out []Tyre
	for _, t := range items {
		if inTab(t, tab, now) {
			out = append(out, t)
		}
	}
	return out
}

func inTab(t Tyre, tab Tab, now time.Time) bool {
	switch tab {
	case TabActive:
		return !t.IsDeleted && !t.WillBeDeletedAt.Before(now)
	case TabExpired:
		return !t.IsDeleted && t.WillBeDeletedAt.Before(now)
	case TabDeleted:
		return t.IsDeleted
	default:
		return true
	}
}

// Visible keeps the listings shown on the public feed: not deleted and not expired.
func Visible(items []Tyre, now time.Time) []Tyre {
	var out []Tyre
	for _, t := range items {
		if !t.IsDeleted && t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out
}
