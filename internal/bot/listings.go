package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tyres_bot/internal/api"
	"tyres_bot/internal/model"
)

const phoneNotVerified = "Confirm your phone number before publishing: /phone <number>, then /verify <code>."

func (b *Bot) handleShow(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /show <id>")
		return
	}

	t, err := b.client.FetchByID(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			b.reply(chatID, fmt.Sprintf("Listing %s not found.", id))
			return
		}
		b.replyErr(ctx, chatID, "load listing", err)
		return
	}
	b.send(chatID, FormatDetail(t, b.cfg.ImageBaseURL), markup([][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("☆ Favourite", cbFav+":"+t.ID)),
	}))
}

// verifiedClient returns a client for a chat whose account may publish.
func (b *Bot) verifiedClient(ctx context.Context, chatID int64) (*api.Client, bool) {
	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return nil, false
	}
	p, err := client.Profile(ctx)
	if err != nil {
		b.replyErr(ctx, chatID, "load profile", err)
		return nil, false
	}
	if !p.PhoneVerified {
		b.reply(chatID, phoneNotVerified)
		return nil, false
	}
	return client, true
}

func (b *Bot) handleNew(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /new <field>=<value> ...\nFields: "+strings.Join(model.DraftFields(), ", "))
		return
	}
	d, err := ParseDraftArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := d.Validate(false, b.now()); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid listing: %v", err))
		return
	}

	client, ok := b.verifiedClient(ctx, chatID)
	if !ok {
		return
	}
	t, err := client.Create(ctx, d)
	if err != nil {
		b.replyErr(ctx, chatID, "create listing", err)
		return
	}
	b.log.Info("listing created", "chat_id", chatID, "id", t.ID)
	b.reply(chatID, fmt.Sprintf("Listing %s created.\n\n%s", t.ID, FormatTyre(1, t, b.cfg.ImageBaseURL)))
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, args string) {
	id, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	if id == "" || strings.TrimSpace(rest) == "" {
		b.reply(chatID, "Usage: /edit <id> <field>=<value> ...")
		return
	}
	edits, err := ParseDraftArgs(rest)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := edits.Validate(true, b.now()); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid listing: %v", err))
		return
	}

	client, ok := b.verifiedClient(ctx, chatID)
	if !ok {
		return
	}
	current, err := client.FetchByID(ctx, id)
	if err != nil {
		b.replyErr(ctx, chatID, "load listing", err)
		return
	}
	d := model.DraftFrom(current)
	for k, v := range edits {
		d[k] = v
	}
	if d["treadDepth"] == "" && d["treadPercent"] == "" {
		b.reply(chatID, "Invalid listing: treadDepth or treadPercent is required")
		return
	}

	t, err := client.Update(ctx, id, d)
	if err != nil {
		b.replyErr(ctx, chatID, "edit listing", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Listing %s updated.\n\n%s", t.ID, FormatTyre(1, t, b.cfg.ImageBaseURL)))
}

// handleDelete asks for confirmation; the listing is removed from the callback.
func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /delete <id>")
		return
	}
	if _, _, ok := b.authed(ctx, chatID); !ok {
		return
	}
	b.confirmDelete(chatID, id)
}

func (b *Bot) handleProfile(ctx context.Context, chatID int64, args string) {
	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}
	p, err := client.Profile(ctx)
	if err != nil {
		b.replyErr(ctx, chatID, "load profile", err)
		return
	}
	if args == "" {
		b.reply(chatID, FormatProfile(p)+"\n\nChange it with /profile name=<name> city=<city> phone=<phone>")
		return
	}

	edits, err := parseProfileArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	u := model.ProfileUpdate{Name: p.Name, City: p.City, Phone: p.Phone}
	if v, ok := edits["name"]; ok {
		u.Name = v
	}
	if v, ok := edits["city"]; ok {
		u.City = v
	}
	if v, ok := edits["phone"]; ok {
		u.Phone = v
	}
	if err := u.Validate(); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid profile: %v", err))
		return
	}

	p, err = client.UpdateProfile(ctx, u)
	if err != nil {
		b.replyErr(ctx, chatID, "update profile", err)
		return
	}
	b.reply(chatID, "Profile updated.\n\n"+FormatProfile(p))
}

// parseProfileArgs reads name=, city= and phone= pairs; values may contain spaces.
func parseProfileArgs(args string) (map[string]string, error) {
	out := map[string]string{}
	var current string
	for _, tok := range strings.Fields(args) {
		if k, v, ok := strings.Cut(tok, "="); ok && isIdent(k) {
			switch k {
			case "name", "city", "phone":
			default:
				return nil, fmt.Errorf("unknown profile field %q. Fields: name, city, phone", k)
			}
			out[k] = v
			current = k
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("usage: /profile name=<name> city=<city> phone=<phone>")
		}
		out[current] = strings.TrimSpace(out[current] + " " + tok)
	}
	return out, nil
}

func (b *Bot) handlePassword(ctx context.Context, chatID int64, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		b.reply(chatID, "Usage: /password <current> <new>")
		return
	}
	if err := model.ValidatePassword(parts[1]); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid password: %v", err))
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}
	if err := client.ChangePassword(ctx, parts[0], parts[1]); err != nil {
		b.replyErr(ctx, chatID, "change password", err)
		return
	}
	b.reply(chatID, "Password changed.")
}

func (b *Bot) handlePhone(ctx context.Context, chatID int64, args string) {
	phone := strings.TrimSpace(args)
	if phone == "" {
		b.reply(chatID, "Usage: /phone <number>")
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}
	msg, err := client.SendPhoneCode(ctx, phone)
	if err != nil {
		b.replyErr(ctx, chatID, "send confirmation code", err)
		return
	}
	if msg == "" {
		msg = "Code sent."
	}
	b.reply(chatID, msg+"\nReply with /verify <code>.")
}

func (b *Bot) handleVerify(ctx context.Context, chatID int64, args string) {
	code := strings.TrimSpace(args)
	if code == "" {
		b.reply(chatID, "Usage: /verify <code>")
		return
	}

	client, _, ok := b.authed(ctx, chatID)
	if !ok {
		return
	}
	if err := client.VerifyPhoneCode(ctx, code); err != nil {
		b.replyErr(ctx, chatID, "verify phone", err)
		return
	}
	b.reply(chatID, "Phone number confirmed. You can now publish listings with /new.")
}
