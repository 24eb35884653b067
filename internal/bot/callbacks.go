package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tyres_bot/internal/model"
)

const (
	cmdMore  = "more"
	cmdRetry = "retry"

	cbMyMore        = "mymore"
	cbFav           = "fav"
	cbDeleteConfirm = "delete_confirm"
	cbDelete        = "delete"
	cbNoop          = "noop"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(data, ":")
	if !ok || arg == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdMore:
		b.handleMore(ctx, chatID)
	case cmdRetry:
		b.handleRetry(ctx, chatID)
	case cbMyMore:
		tab, ok := model.ParseTab(arg)
		if !ok {
			return
		}
		b.handleMyMore(ctx, chatID, tab)
	case cbFav:
		b.toggleFav(ctx, chatID, arg)
	case cbDeleteConfirm:
		b.confirmDelete(chatID, arg)
	case cbDelete:
		b.handleAction(ctx, chatID, arg, actionDelete)
	}
}
