// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"time"
)

// Field names one of the listing filters understood by the backend.
type Field string

// Supported filter fields.
const (
	FieldWidth     Field = "width"
	FieldHeight    Field = "height"
	FieldRadius    Field = "radius"
	FieldTitle     Field = "title"
	FieldSeason    Field = "season"
	FieldVehicle   Field = "vehicle"
	FieldCondition Field = "condition"
)

var fields = []Field{
	FieldWidth,
	FieldHeight,
	FieldRadius,
	FieldTitle,
	FieldSeason,
	FieldVehicle,
	FieldCondition,
}

// Fields returns all filter fields in canonical order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// ParseField validates a filter field name.
func ParseField(s string) (Field, bool) {
	for _, f := range fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Filters maps every filter field to its value. An empty value means unset.
type Filters map[Field]string

// EmptyFilters returns a Filters value with every field unset.
func EmptyFilters() Filters {
	f := make(Filters, len(fields))
	for _, k := range fields {
		f[k] = ""
	}
	return f
}

// Clone returns a copy that always carries every field.
func (f Filters) Clone() Filters {
	out := EmptyFilters()
	for _, k := range fields {
		out[k] = f[k]
	}
	return out
}

// Equal reports whether both values set the same fields to the same values.
func (f Filters) Equal(other Filters) bool {
	for _, k := range fields {
		if f[k] != other[k] {
			return false
		}
	}
	return true
}

// NonEmpty returns the set fields in canonical order.
func (f Filters) NonEmpty() []Field {
	var out []Field
	for _, k := range fields {
		if f[k] != "" {
			out = append(out, k)
		}
	}
	return out
}

// SortKey is the server-side ordering of a listing query.
type SortKey string

// Supported sort keys.
const (
	SortNone      SortKey = ""
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
	SortPriceAsc  SortKey = "priceAsc"
	SortPriceDesc SortKey = "priceDesc"
)

// DefaultSort is applied on startup and after a reset.
const DefaultSort = SortNewest

// ParseSort validates a sort key.
func ParseSort(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortNone, SortNewest, SortOldest, SortPriceAsc, SortPriceDesc:
		return k, true
	}
	return "", false
}

// DefaultPageSize is the number of listings requested per page.
const DefaultPageSize = 6

// Query is the filter and sort combination that defines a feed.
type Query struct {
	Filters Filters
	Sort    SortKey
}

// PageRequest describes a single list call to the backend.
type PageRequest struct {
	Filters Filters
	Sort    SortKey
	Page    int
	Limit   int
}

// Validate checks page bounds.
func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return fmt.Errorf("page must be positive, got %d", r.Page)
	}
	if r.Limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", r.Limit)
	}
	return nil
}

// Page is one batch of listings plus the total across all pages.
type Page struct {
	Items []Tyre `json:"tyres"`
	Total int    `json:"total"`
}

// ImageInfo is one rendition of an uploaded listing photo.
type ImageInfo struct {
	Width    int    `json:"width"`
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
}

// Tyre is a classified listing as returned by the backend.
type Tyre struct {
	ID              string        `json:"_id"`
	Brand           string        `json:"brand"`
	Model           string        `json:"model"`
	Width           string        `json:"width"`
	Height          string        `json:"height"`
	Radius          string        `json:"radius"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	Season          string        `json:"season"`
	Vehicle         string        `json:"vehicle"`
	Year            int           `json:"year"`
	Quantity        int           `json:"quantity"`
	TreadDepth      string        `json:"treadDepth"`
	TreadPercent    string        `json:"treadPercent"`
	City            string        `json:"city"`
	Condition       string        `json:"condition"`
	Price           float64       `json:"price"`
	Contact         string        `json:"contact"`
	Description     string        `json:"description,omitempty"`
	Images          [][]ImageInfo `json:"images"`
	UserID          string        `json:"userId"`
	FavoritesCount  int           `json:"favoritesCount"`
	Views           int           `json:"views"`
	IsActive        bool          `json:"isActive"`
	IsDeleted       bool          `json:"isDeleted"`
	IsExpired       bool          `json:"isExpired"`
	CreatedAt       time.Time     `json:"createdAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	WillBeDeletedAt time.Time     `json:"willBeDeletedAt"`
}

// Size formats the tyre dimensions, e.g. "195/65R15".
func (t Tyre) Size() string {
	return fmt.Sprintf("%s/%sR%s", t.Width, t.Height, t.Radius)
}

// Expired reports whether the listing's publication has lapsed at now.
func (t Tyre) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users             int          `json:"users"`
	Tyres             int          `json:"tyres"`
	DailyListings     []DailyCount `json:"-"`
	DailyUsers        []DailyCount `json:"-"`
	ListingCategories []NamedCount `json:"-"`
	ListingStatus     []NamedCount `json:"-"`
}

// DailyCount is one point of a per-day series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// NamedCount is one slice of a categorical breakdown.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Watch is a chat's subscription to new listings matching a query.
type Watch struct {
	ChatID      int64
	Query       string
	LastCheckAt *time.Time
	CreatedAt   time.Time
}
