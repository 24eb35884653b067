package bot

import (
	"context"
	"sync"

	"tyres_bot/internal/api"
	"tyres_bot/internal/config"
	"tyres_bot/internal/feed"
	"tyres_bot/internal/filter"
	"tyres_bot/internal/listing"
	"tyres_bot/internal/model"
	"tyres_bot/internal/prefs"
	"tyres_bot/internal/urlsync"
)

// session is the per-chat browsing state: the public listing feed and the
// user's own listings.
type session struct {
	chatID  int64
	ctrl    *listing.Controller
	loc     *urlsync.MemLocation
	mounted bool

	mine *feed.Accumulator

	mu    sync.Mutex
	myTab model.Tab
}

func (s *session) tab() model.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myTab
}

func (s *session) setTab(t model.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myTab = t
}

func (s *session) close() {
	s.ctrl.Close()
	s.mine.Wait()
}

// session returns the chat's session, creating an unmounted one if needed.
func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[chatID]; ok {
		return s
	}
	s := b.newSession(chatID, "")
	b.sessions[chatID] = s
	return s
}

// replaceSession swaps in a fresh session whose link holds query.
func (b *Bot) replaceSession(chatID int64, query string) *session {
	s := b.newSession(chatID, query)

	b.mu.Lock()
	old := b.sessions[chatID]
	b.sessions[chatID] = s
	b.mu.Unlock()

	if old != nil {
		old.close()
	}
	return s
}

func (b *Bot) newSession(chatID int64, query string) *session {
	log := b.log.With("chat_id", chatID)
	s := &session{
		chatID: chatID,
		loc:    urlsync.NewMemLocation(query),
		myTab:  model.TabActive,
	}

	opts := listing.DefaultOptions()
	opts.PageSize = b.cfg.PageSize
	if opts.PageSize < 1 {
		opts.PageSize = model.DefaultPageSize
	}
	if b.cfg.Debounce > 0 {
		opts.Debounce = b.cfg.Debounce
	}
	if b.cfg.BareURLPolicy == config.BareURLReset {
		opts.Policy = filter.ResetOnBareURL
	}

	persist := prefs.New(b.store, prefs.KeyFor(chatID), log)
	s.ctrl = listing.New(b.client, persist, s.loc, opts, log)
	s.ctrl.OnChange(func(snap feed.Snapshot) { b.renderFeed(chatID, snap) })
	s.ctrl.OnError(func(err error, initial bool) { b.renderFeedError(chatID, err, initial) })

	s.mine = feed.NewAccumulator(mineSource{b: b, chatID: chatID}, opts.PageSize, log)
	s.mine.OnChange(func(snap feed.Snapshot) { b.renderMine(s, snap) })
	s.mine.OnError(func(err error, _ bool) { b.renderMineError(chatID, err) })
	return s
}

// feed returns the chat's session with its listing feed mounted.
func (b *Bot) feed(ctx context.Context, chatID int64) *session {
	s := b.session(chatID)
	if !s.mounted {
		s.ctrl.Mount(ctx)
		s.mounted = true
	}
	return s
}

func (b *Bot) closeSessions() {
	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// mineSource pages through the chat user's own listings with the token
// stored at the time of each fetch.
type mineSource struct {
	b      *Bot
	chatID int64
}

func (m mineSource) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	acct, ok := m.b.loadAccount(ctx, m.chatID)
	if !ok {
		return model.Page{}, errNotLoggedIn
	}
	return m.b.client.WithToken(acct.Token).Mine().FetchPage(ctx, req)
}

var _ feed.Source = mineSource{}
var _ feed.Source = (*api.Client)(nil)
