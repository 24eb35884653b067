package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"tyres_bot/internal/api"
	"tyres_bot/internal/config"
	"tyres_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that lets users browse listings and sends watch alerts.
type Bot struct {
	api     telegramAPI
	client  *api.Client
	store   storage.Storage
	cfg     *config.Config
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

// New creates a Bot with the given Telegram token, backend client, storage, and config.
func New(token string, client *api.Client, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	tg, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:    tg,
		client: client,
		store:  store,
		cfg:    cfg,
		// Telegram allows about 30 messages per second across all chats.
		limiter:  rate.NewLimiter(rate.Every(40*time.Millisecond), 5),
		log:      log,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.closeSessions()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.send(chatID, text, nil)
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if err := b.limiter.Wait(context.Background()); err != nil {
		b.log.Error("wait send limiter", "chat_id", chatID, "error", err)
		return
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	if cmd == "login" || cmd == "password" {
		b.log.Debug("command", "cmd", cmd, "chat_id", chatID)
	} else {
		b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)
	}

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "search":
		b.handleSearch(ctx, chatID)
	case "filters":
		b.handleFilters(ctx, chatID)
	case "set":
		b.handleSet(ctx, chatID, args)
	case "unset":
		b.handleUnset(ctx, chatID, args)
	case "sort":
		b.handleSort(ctx, chatID, args)
	case "reset":
		b.handleReset(ctx, chatID)
	case cmdMore:
		b.handleMore(ctx, chatID)
	case cmdRetry:
		b.handleRetry(ctx, chatID)
	case "link":
		b.handleLink(ctx, chatID)
	case "open":
		b.handleOpen(ctx, chatID, args)
	case "options":
		b.handleOptions(chatID, args)
	case "watch":
		b.handleWatch(ctx, chatID)
	case "unwatch":
		b.handleUnwatch(ctx, chatID)
	case "login":
		b.handleLogin(ctx, chatID, args)
	case "logout":
		b.handleLogout(ctx, chatID)
	case "my":
		b.handleMy(ctx, chatID, args)
	case "favs":
		b.handleFavs(ctx, chatID)
	case "fav":
		b.handleFav(ctx, chatID, args, true)
	case "unfav":
		b.handleFav(ctx, chatID, args, false)
	case "renew":
		b.handleAction(ctx, chatID, args, actionRenew)
	case "activate":
		b.handleAction(ctx, chatID, args, actionActivate)
	case "deactivate":
		b.handleAction(ctx, chatID, args, actionDeactivate)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	case "show":
		b.handleShow(ctx, chatID, args)
	case "new":
		b.handleNew(ctx, chatID, args)
	case "edit":
		b.handleEdit(ctx, chatID, args)
	case "profile":
		b.handleProfile(ctx, chatID, args)
	case "password":
		b.handlePassword(ctx, chatID, args)
	case "phone":
		b.handlePhone(ctx, chatID, args)
	case "verify":
		b.handleVerify(ctx, chatID, args)
	case "stats":
		b.handleStats(ctx, chatID, msg.From)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
