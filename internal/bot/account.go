package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tyres_bot/internal/api"
	"tyres_bot/internal/feed"
	"tyres_bot/internal/model"
)

var errNotLoggedIn = errors.New("not logged in")

const notLoggedIn = "You are not logged in. Use /login <email> <password>."

func tokenKey(chatID int64) string {
	return "token:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) loadAccount(ctx context.Context, chatID int64) (api.Session, bool) {
	data, err := b.store.Get(ctx, tokenKey(chatID))
	if err != nil {
		b.log.Error("load account", "chat_id", chatID, "error", err)
		return api.Session{}, false
	}
	if data == nil {
		return api.Session{}, false
	}
	var acct api.Session
	if err := json.Unmarshal(data, &acct); err != nil || acct.Token == "" {
		b.log.Warn("decode account", "chat_id", chatID, "error", err)
		return api.Session{}, false
	}
	return acct, true
}

// authed returns a client carrying the chat's token. It replies and returns
// false when the chat has not logged in.
func (b *Bot) authed(ctx context.Context, chatID int64) (*api.Client, api.Session, bool) {
	acct, ok := b.loadAccount(ctx, chatID)
	if !ok {
		b.reply(chatID, notLoggedIn)
		return nil, api.Session{}, false
	}
	return b.client.WithToken(acct.Token), acct, true
}

// replyErr reports a failed backend call. A rejected token is forgotten.
func (b *Bot) replyErr(ctx context.Context, chatID int64, action string, err error) {
	if api.IsUnauthorized(err) {
		if derr := b.store.Delete(ctx, tokenKey(chatID)); derr != nil {
			b.log.Error("forget token", "chat_id", chatID, "error", derr)
		}
		b.reply(chatID, "Your session has expired. Use /login to sign in again.")
		return
	}
	b.log.Warn(action, "chat_id", chatID, "error", err)
	b.reply(chatID, fmt.Sprintf("Could not %s: %s", action, describeError(err)))
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, args string) {
	email, password, err := ParseLoginArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	acct, err := b.client.Login(ctx, email, password)
	if err != nil {
		if api.IsUnauthorized(err) {
			b.reply(chatID, "Wrong email or password.")
			return
		}
		b.replyErr(ctx, chatID, "log in", err)
		return
	}

	data, err := json.Marshal(acct)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.store.Set(ctx, tokenKey(chatID), data); err != nil {
		b.reply(chatID, fmt.Sprintf("Error saving session: %v", err))
		return
	}

	name := acct.Name
	if name == "" {
		name = acct.Email
	}
	b.reply(chatID, fmt.Sprintf("Logged in as %s.", name))
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	if err := b.store.Delete(ctx, tokenKey(chatID)); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Logged out.")
}

func (b *Bot) handleMy(ctx context.Context, chatID int64, args string) {
	tab := model.TabActive
	if args != "" {
		t, ok := model.ParseTab(args)
		if !ok {
			b.reply(chatID, "Usage: /my [active|expired|deleted|favorites]")
			return
		}
		tab = t
	}

	if _, _, ok := b.authed(ctx, chatID); !ok {
		return
	}
	if tab == model.TabFavorites {
		b.handleFavs(ctx, chatID)
		return
	}

	s := b.session(chatID)
	s.setTab(tab)
	s.mine.Reset(ctx, model.Query{})
}

func (b *Bot) handleMyMore(ctx context.Context, chatID int64, tab model.Tab) {
	s := b.session(chatID)
	s.setTab(tab)
	if !s.mine.RequestNextPage(ctx) {
		b.reply(chatID, "Nothing more to load. Use /my to start over.")
	}
}

func (b *Bot) renderMine(s *session, snap feed.Snapshot) {
	if snap.Status != feed.Idle || snap.LastError != nil {
		return
	}
	tab := s.tab()
	offset := len(snap.Items) - snap.Added
	items := model.Partition(snap.Items[offset:], tab, b.now())

	text := FormatMyPage(tab, items, offset == 0, len(snap.Items), snap.Total)
	b.send(s.chatID, text, myKeyboard(tab, items, snap.HasMore))
}

func (b *Bot) renderMineError(chatID int64, err error) {
	if errors.Is(err, errNotLoggedIn) {
		b.reply(chatID, notLoggedIn)
		return
	}
	b.replyErr(context.Background(), chatID, "load your listings", err)
}

func (b *Bot) handleFavs(ctx context.Context, chatID int64) {
	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}

	ids, err := client.FavoriteIDs(ctx)
	if err != nil {
		b.replyErr(ctx, chatID, "load favourites", err)
		return
	}
	if len(ids) == 0 {
		b.reply(chatID, "You have no favourites yet. Tap ☆ under a listing or use /fav <id>.")
		return
	}

	items, err := client.FetchByIDs(ctx, ids)
	if err != nil {
		b.replyErr(ctx, chatID, "load favourites", err)
		return
	}
	b.send(chatID, FormatFavorites(items), favKeyboard(items, "★"))
}

func (b *Bot) handleFav(ctx context.Context, chatID int64, args string, add bool) {
	id, err := ParseIDArg(args)
	if err != nil {
		if add {
			b.reply(chatID, "Usage: /fav <id>")
		} else {
			b.reply(chatID, "Usage: /unfav <id>")
		}
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}

	if add {
		if err := client.AddFavorite(ctx, id); err != nil {
			b.replyErr(ctx, chatID, "add favourite", err)
			return
		}
		b.reply(chatID, fmt.Sprintf("Listing %s added to favourites.", id))
		return
	}
	if err := client.RemoveFavorite(ctx, id); err != nil {
		b.replyErr(ctx, chatID, "remove favourite", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Listing %s removed from favourites.", id))
}

// toggleFav adds id to favourites, or removes it when it is already there.
func (b *Bot) toggleFav(ctx context.Context, chatID int64, id string) {
	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}

	ids, err := client.FavoriteIDs(ctx)
	if err != nil {
		b.replyErr(ctx, chatID, "load favourites", err)
		return
	}
	b.handleFav(ctx, chatID, id, !slices.Contains(ids, id))
}

type listingAction int

const (
	actionRenew listingAction = iota
	actionActivate
	actionDeactivate
	actionDelete
)

var actionNames = map[listingAction][2]string{
	actionRenew:      {"renew", "renewed for 30 days"},
	actionActivate:   {"activate", "activated"},
	actionDeactivate: {"deactivate", "deactivated"},
	actionDelete:     {"delete", "deleted"},
}

func (b *Bot) handleAction(ctx context.Context, chatID int64, args string, action listingAction) {
	names := actionNames[action]
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <id>", names[0]))
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}

	switch action {
	case actionRenew:
		err = client.Renew(ctx, id)
	case actionActivate:
		err = client.Activate(ctx, id)
	case actionDeactivate:
		err = client.Deactivate(ctx, id)
	case actionDelete:
		err = client.Delete(ctx, id)
	}
	if err != nil {
		b.replyErr(ctx, chatID, names[0]+" listing", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Listing %s %s.", id, names[1]))
}

func (b *Bot) confirmDelete(chatID int64, id string) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", cbDelete+":"+id),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop+":0"),
		),
	)
	b.send(chatID, fmt.Sprintf("Delete listing %s? It will no longer be shown to buyers.", id), &markup)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if from == nil || !b.cfg.IsAdmin(from.ID) {
		b.reply(chatID, "This command is for administrators only.")
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}

	stats, err := client.AdminStats(ctx)
	if err != nil {
		b.replyErr(ctx, chatID, "load statistics", err)
		return
	}
	b.reply(chatID, FormatStats(stats))
}
