package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"tyres_bot/internal/bot"
	"tyres_bot/internal/feed"
	"tyres_bot/internal/model"
	"tyres_bot/internal/storage"
	"tyres_bot/internal/urlsync"
)

// watchPageSize is how many of the newest listings each check looks at.
const watchPageSize = 20

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler periodically checks watches and sends alerts for new listings.
type Scheduler struct {
	store     storage.Watches
	source    feed.Source
	sender    Sender
	log       *slog.Logger
	tick      time.Duration
	interval  time.Duration
	imageBase string
	limiter   *rate.Limiter
}

// New creates a Scheduler that checks each watch every interval.
func New(store storage.Watches, source feed.Source, sender Sender, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		source:   source,
		sender:   sender,
		log:      log,
		tick:     1 * time.Minute,
		interval: interval,
		// Rate limit: ~20 messages/sec max for Telegram
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetImageBaseURL sets the CDN base used for photo links in alerts.
func (s *Scheduler) SetImageBaseURL(base string) {
	s.imageBase = base
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	watches, err := s.store.ListDueWatches(ctx, s.interval)
	if err != nil {
		s.log.Error("list due watches", "error", err)
		return
	}

	for _, w := range watches {
		if ctx.Err() != nil {
			return
		}
		s.processWatch(ctx, w)
	}
}

func (s *Scheduler) processWatch(ctx context.Context, w model.Watch) {
	s.log.Debug("checking watch", "chat_id", w.ChatID, "query", w.Query)

	// The first check records what already exists without announcing it.
	baseline := w.LastCheckAt == nil

	seed := urlsync.Decode(w.Query)
	page, err := s.source.FetchPage(ctx, model.PageRequest{
		Filters: seed.Filters,
		Sort:    model.SortNewest,
		Page:    1,
		Limit:   watchPageSize,
	})
	if err != nil {
		s.log.Error("fetch watch page", "chat_id", w.ChatID, "query", w.Query, "error", err)
		if !baseline {
			s.updateLastCheck(ctx, &w)
		}
		return
	}

	items := model.Visible(page.Items, time.Now())
	sent := 0
	// Oldest first, so alerts arrive in publication order.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		seen, err := s.store.IsSeen(ctx, w.ChatID, item.ID)
		if err != nil {
			s.log.Error("check seen", "chat_id", w.ChatID, "item_id", item.ID, "error", err)
			continue
		}
		if seen {
			continue
		}

		if !baseline {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.sender.SendMessage(w.ChatID, bot.FormatAlert(item, s.imageBase))
			sent++
		}

		if err := s.store.MarkSeen(ctx, w.ChatID, item.ID); err != nil {
			s.log.Error("mark seen", "chat_id", w.ChatID, "item_id", item.ID, "error", err)
		}
	}

	switch {
	case baseline:
		s.log.Info("recorded watch baseline", "chat_id", w.ChatID, "count", len(items))
	case sent > 0:
		s.log.Info("sent alerts", "chat_id", w.ChatID, "count", sent)
	}

	s.updateLastCheck(ctx, &w)
}

func (s *Scheduler) updateLastCheck(ctx context.Context, w *model.Watch) {
	now := time.Now().UTC()
	w.LastCheckAt = &now
	if err := s.store.UpdateWatch(ctx, w); err != nil {
		s.log.Error("update last check", "chat_id", w.ChatID, "error", err)
	}
}
