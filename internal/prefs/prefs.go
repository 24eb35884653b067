// Package prefs persists a user's filter preferences in a key-value store.
//
// Storage failures never reach the caller. They are logged and the adapter
// keeps serving an in-memory copy until a later write succeeds.
package prefs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"tyres_bot/internal/model"
	"tyres_bot/internal/storage"
)

// DefaultKey is the storage key for filter preferences.
const DefaultKey = "tyresFilters"

// KeyFor namespaces DefaultKey for one chat.
func KeyFor(chatID int64) string {
	return DefaultKey + ":" + strconv.FormatInt(chatID, 10)
}

// Adapter loads, saves and clears one persisted filter set.
type Adapter struct {
	kv  storage.KV
	key string
	log *slog.Logger

	mu       sync.Mutex
	degraded bool
	mem      model.Filters
}

// New creates an Adapter for key. A nil kv keeps preferences in memory only.
func New(kv storage.KV, key string, log *slog.Logger) *Adapter {
	return &Adapter{
		kv:       kv,
		key:      key,
		log:      log,
		degraded: kv == nil,
	}
}

// Save persists the full filter map. Last writer wins.
func (a *Adapter) Save(ctx context.Context, f model.Filters) {
	f = f.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.mem = f

	if a.kv == nil {
		return
	}

	data, err := json.Marshal(encode(f))
	if err != nil {
		a.log.Warn("encode filters", "key", a.key, "error", err)
		a.degraded = true
		return
	}
	if err := a.kv.Set(ctx, a.key, data); err != nil {
		a.log.Warn("save filters", "key", a.key, "error", err)
		a.degraded = true
		return
	}
	a.degraded = false
}

// Load returns the persisted filters. The boolean is false when nothing is
// stored or the stored value cannot be parsed.
func (a *Adapter) Load(ctx context.Context) (model.Filters, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.degraded {
		return a.fromMemory()
	}

	data, err := a.kv.Get(ctx, a.key)
	if err != nil {
		a.log.Warn("load filters", "key", a.key, "error", err)
		return a.fromMemory()
	}
	if data == nil {
		return nil, false
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		a.log.Warn("parse filters", "key", a.key, "error", err)
		return nil, false
	}
	return decode(raw), true
}

// Clear removes the persisted filters.
func (a *Adapter) Clear(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mem = nil

	if a.kv == nil {
		return
	}
	if err := a.kv.Delete(ctx, a.key); err != nil {
		a.log.Warn("clear filters", "key", a.key, "error", err)
		a.degraded = true
		return
	}
	a.degraded = false
}

func (a *Adapter) fromMemory() (model.Filters, bool) {
	if a.mem == nil {
		return nil, false
	}
	return a.mem.Clone(), true
}

func encode(f model.Filters) map[string]string {
	out := make(map[string]string, len(f))
	for _, k := range model.Fields() {
		out[string(k)] = f[k]
	}
	return out
}

// decode keeps recognised fields and drops the rest.
func decode(raw map[string]string) model.Filters {
	f := model.EmptyFilters()
	for k, v := range raw {
		if field, ok := model.ParseField(k); ok {
			f[field] = v
		}
	}
	return f
}
