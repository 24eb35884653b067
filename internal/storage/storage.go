// Package storage defines the persistence interfaces and their implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"tyres_bot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// KV is a flat key-value store for small opaque values.
type KV interface {
	// Get returns (nil, nil) if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watches persists new-listing subscriptions and the listings already announced.
type Watches interface {
	SaveWatch(ctx context.Context, w *model.Watch) error
	GetWatch(ctx context.Context, chatID int64) (*model.Watch, error)
	ListDueWatches(ctx context.Context, interval time.Duration) ([]model.Watch, error)
	UpdateWatch(ctx context.Context, w *model.Watch) error
	DeleteWatch(ctx context.Context, chatID int64) error

	MarkSeen(ctx context.Context, chatID int64, itemID string) error
	IsSeen(ctx context.Context, chatID int64, itemID string) (bool, error)
}

// Storage is the interface for all persistence operations.
type Storage interface {
	KV
	Watches
}

type combined struct {
	KV
	Watches
}

// Combine serves key-value operations from kv and watches from w.
func Combine(kv KV, w Watches) Storage {
	return combined{KV: kv, Watches: w}
}
