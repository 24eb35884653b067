package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tyres_bot/internal/api"
	"tyres_bot/internal/feed"
	"tyres_bot/internal/filter"
	"tyres_bot/internal/model"
	"tyres_bot/internal/urlsync"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Tyres Bot!

Browse tyre listings, narrow them down with filters, and get alerts for new ones.

Quick start:
1. /set width 195 — filter by tyre width
2. /search — show matching listings
3. /watch — get new listings for these filters

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Browsing:
/search — show listings for the current filters
/filters — show the current filters
/set <field> <value> — set a filter
/unset <field> — clear a filter
/sort <newest|oldest|priceAsc|priceDesc> — change the order
/reset — clear all filters
/more — load the next page
/retry — reload after an error
/options <field> — list the values of a field
/show <id> — full details of a listing
/link — shareable link for these filters
/open <link> — open a shared link

Alerts:
/watch — notify me about new listings for these filters
/unwatch — stop notifications

Account:
/login <email> <password> — sign in
/logout — sign out
/my [active|expired|deleted|favorites] — your listings
/favs — your favourites
/fav <id>, /unfav <id> — add or remove a favourite
/renew <id>, /activate <id>, /deactivate <id>, /delete <id> — manage a listing
/new <field>=<value> ... — publish a listing
/edit <id> <field>=<value> ... — change a listing
/profile [name=<name> city=<city> phone=<phone>] — show or change your profile
/password <current> <new> — change your password
/phone <number>, /verify <code> — confirm your phone number

Filter fields: width, height, radius, title, season, vehicle, condition
Listing fields: `+strings.Join(model.DraftFields(), ", "))
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64) {
	s := b.session(chatID)
	if !s.mounted {
		b.feed(ctx, chatID)
		return
	}
	if !s.ctrl.Flush() {
		s.ctrl.Retry(ctx)
	}
}

func (b *Bot) handleFilters(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	b.reply(chatID, FormatQuery(s.ctrl.Query()))
}

func (b *Bot) handleSet(ctx context.Context, chatID int64, args string) {
	field, value, err := ParseSetArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.setFilter(ctx, chatID, field, value)
}

func (b *Bot) handleUnset(ctx context.Context, chatID int64, args string) {
	field := strings.TrimSpace(args)
	if field == "" {
		b.reply(chatID, "Usage: /unset <field>")
		return
	}
	b.setFilter(ctx, chatID, field, "")
}

func (b *Bot) setFilter(ctx context.Context, chatID int64, field, value string) {
	s := b.feed(ctx, chatID)
	if err := s.ctrl.SetFilter(ctx, field, value); err != nil {
		if errors.Is(err, filter.ErrInvalidKey) {
			b.reply(chatID, fmt.Sprintf("Unknown field %q. Fields: %s", field, fieldList()))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatQuery(s.ctrl.Query()))
}

func (b *Bot) handleSort(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /sort <key>\n\n"+FormatOptions(model.SortOptions))
		return
	}

	s := b.feed(ctx, chatID)
	if err := s.ctrl.SetSort(ctx, args); err != nil {
		b.reply(chatID, fmt.Sprintf("Unknown sort %q.\n\n%s", args, FormatOptions(model.SortOptions)))
		return
	}
	b.reply(chatID, FormatQuery(s.ctrl.Query()))
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	s.ctrl.Reset(ctx)
	b.reply(chatID, "Filters cleared.")
}

func (b *Bot) handleMore(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	if s.ctrl.More(ctx) {
		return
	}

	snap := s.ctrl.Snapshot()
	switch {
	case snap.Status == feed.LoadingInitial || snap.Status == feed.LoadingMore:
		b.reply(chatID, "Still loading…")
	case snap.Status == feed.Error:
		b.reply(chatID, "The last search failed. Use /retry.")
	default:
		b.reply(chatID, "No more listings.")
	}
}

func (b *Bot) handleRetry(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	s.ctrl.Retry(ctx)
}

func (b *Bot) handleLink(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	b.reply(chatID, s.ctrl.Link(b.cfg.SiteURL+"/"))
}

func (b *Bot) handleOpen(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /open <link>")
		return
	}
	s := b.replaceSession(chatID, urlsync.QueryFromLink(args))
	s.ctrl.Mount(ctx)
	s.mounted = true
	b.reply(chatID, FormatQuery(s.ctrl.Query()))
}

func (b *Bot) handleOptions(chatID int64, args string) {
	if args == "sort" {
		b.reply(chatID, FormatOptions(model.SortOptions))
		return
	}
	f, ok := model.ParseField(args)
	if !ok {
		b.reply(chatID, "Usage: /options <field>\nFields: "+fieldList()+", sort")
		return
	}
	opts := model.Options(f)
	if opts == nil {
		b.reply(chatID, fmt.Sprintf("%s accepts any text.", f))
		return
	}
	b.reply(chatID, FormatOptions(opts))
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64) {
	s := b.feed(ctx, chatID)
	q := s.ctrl.Query()

	w := model.Watch{ChatID: chatID, Query: urlsync.Encode(q.Filters, q.Sort)}
	if err := b.store.SaveWatch(ctx, &w); err != nil {
		b.reply(chatID, fmt.Sprintf("Error saving watch: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Watching for new listings (checked every %s).\n%s", b.cfg.WatchInterval, FormatQuery(q)))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64) {
	if err := b.store.DeleteWatch(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Alerts stopped.")
}

// renderFeed sends the listings a page completion appended.
func (b *Bot) renderFeed(chatID int64, snap feed.Snapshot) {
	if snap.Status != feed.Idle || snap.LastError != nil {
		return
	}
	if len(snap.Items) == 0 {
		b.reply(chatID, "No listings match your filters. Use /reset to see everything.")
		return
	}
	// Every listing on the page was already shown.
	if snap.Added == 0 {
		return
	}

	offset := len(snap.Items) - snap.Added
	page := model.Visible(snap.Items[offset:], b.now())
	text := FormatPage(page, offset, len(snap.Items), snap.Total, b.cfg.ImageBaseURL)
	b.send(chatID, text, pageKeyboard(page, snap.HasMore))
}

func (b *Bot) renderFeedError(chatID int64, err error, initial bool) {
	if initial {
		b.send(chatID, "Server unavailable. Please try again later.", retryKeyboard())
		return
	}
	b.send(chatID, fmt.Sprintf("Could not load more listings: %s. The listings above are still current.", describeError(err)), moreKeyboard())
}

func describeError(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case api.Timeout:
		return "the server took too long to respond"
	case api.NetworkError:
		return "network error"
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fmt.Sprintf("server error (%d)", apiErr.Status)
}

func fieldList() string {
	names := make([]string, 0, len(model.Fields()))
	for _, f := range model.Fields() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
