package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tyres_bot/internal/model"
)

// FormatTyre formats one listing as a numbered block.
func FormatTyre(n int, t model.Tyre, imageBase string) string {
	var b strings.Builder
	title := t.Title
	if title == "" {
		title = strings.TrimSpace(t.Brand + " " + t.Model)
	}
	fmt.Fprintf(&b, "%d. %s %s", n, title, t.Size())
	if t.Season != "" {
		fmt.Fprintf(&b, " · %s", t.Season)
	}
	b.WriteString("\n")

	details := []string{formatPrice(t.Price)}
	for _, s := range []string{t.City, t.Condition} {
		if s != "" {
			details = append(details, s)
		}
	}
	if t.Quantity > 0 {
		details = append(details, fmt.Sprintf("%d pcs", t.Quantity))
	}
	fmt.Fprintf(&b, "   %s\n", strings.Join(details, " · "))

	if img, ok := t.CoverImage(); ok {
		if u := model.ImageURL(imageBase, img, 400); u != "" {
			fmt.Fprintf(&b, "   Photo: %s\n", u)
		}
	}
	fmt.Fprintf(&b, "   id: %s", t.ID)
	return b.String()
}

// FormatDetail formats the full record of one listing.
func FormatDetail(t model.Tyre, imageBase string) string {
	var b strings.Builder
	b.WriteString(strings.TrimPrefix(FormatTyre(1, t, imageBase), "1. "))
	b.WriteString("\n")

	if t.Brand != "" {
		fmt.Fprintf(&b, "\nBrand: %s", strings.TrimSpace(t.Brand+" "+t.Model))
	}
	if t.Vehicle != "" {
		fmt.Fprintf(&b, "\nVehicle: %s", t.Vehicle)
	}
	if t.Year > 0 {
		fmt.Fprintf(&b, "\nYear: %d", t.Year)
	}
	switch {
	case t.TreadDepth != "" && t.TreadPercent != "":
		fmt.Fprintf(&b, "\nTread: %s mm (%s%%)", t.TreadDepth, t.TreadPercent)
	case t.TreadDepth != "":
		fmt.Fprintf(&b, "\nTread: %s mm", t.TreadDepth)
	case t.TreadPercent != "":
		fmt.Fprintf(&b, "\nTread: %s%%", t.TreadPercent)
	}
	if t.Contact != "" {
		fmt.Fprintf(&b, "\nContact: %s", t.Contact)
	}
	fmt.Fprintf(&b, "\nViews: %d", t.Views)
	if !t.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "\nExpires: %s", t.ExpiresAt.Format("2006-01-02"))
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", t.Description)
	}
	return b.String()
}

// FormatProfile formats the signed-in user's account.
func FormatProfile(p model.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s", p.Name, p.Email)
	if p.City != "" {
		fmt.Fprintf(&b, "\nCity: %s", p.City)
	}
	switch {
	case p.Phone == "":
		b.WriteString("\nPhone: not set")
	case p.PhoneVerified:
		fmt.Fprintf(&b, "\nPhone: %s (verified)", p.Phone)
	default:
		fmt.Fprintf(&b, "\nPhone: %s (not verified, use /phone %s)", p.Phone, p.Phone)
	}
	return b.String()
}

// FormatPage formats one page of the public feed. offset is the number of
// listings shown before this page.
func FormatPage(items []model.Tyre, offset, shown, total int, imageBase string) string {
	var b strings.Builder
	for i, t := range items {
		b.WriteString(FormatTyre(offset+i+1, t, imageBase))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Showing %d of %d", shown, total)
	return b.String()
}

// FormatAlert formats a listing that matched a watch.
func FormatAlert(t model.Tyre, imageBase string) string {
	return "New listing for your search:\n\n" + FormatTyre(1, t, imageBase)
}

// FormatMyPage formats one page of the user's own listings for tab.
func FormatMyPage(tab model.Tab, items []model.Tyre, first bool, loaded, total int) string {
	var b strings.Builder
	if first {
		fmt.Fprintf(&b, "Your %s listings:\n\n", tab)
	}
	if len(items) == 0 {
		fmt.Fprintf(&b, "No %s listings here.\n\n", tab)
	}
	for i, t := range items {
		b.WriteString(FormatTyre(i+1, t, ""))
		b.WriteString("\n")
		switch tab {
		case model.TabActive:
			fmt.Fprintf(&b, "   expires %s\n", t.ExpiresAt.Format("2006-01-02"))
		case model.TabExpired:
			fmt.Fprintf(&b, "   /renew %s\n", t.ID)
		case model.TabDeleted:
			fmt.Fprintf(&b, "   /activate %s\n", t.ID)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Loaded %d of %d", loaded, total)
	return b.String()
}

// FormatFavorites formats the user's favourite listings.
func FormatFavorites(items []model.Tyre) string {
	if len(items) == 0 {
		return "Your favourites are no longer available."
	}
	var b strings.Builder
	b.WriteString("Your favourites:\n\n")
	for i, t := range items {
		b.WriteString(FormatTyre(i+1, t, ""))
		b.WriteString("\n\n")
	}
	b.WriteString("Tap ★ to remove a listing.")
	return b.String()
}

// FormatQuery describes the current filters and sort.
func FormatQuery(q model.Query) string {
	var b strings.Builder
	fields := q.Filters.NonEmpty()
	if len(fields) == 0 {
		b.WriteString("No filters set.")
	} else {
		b.WriteString("Filters:")
		for _, f := range fields {
			fmt.Fprintf(&b, "\n  %s: %s", f, q.Filters[f])
		}
	}
	fmt.Fprintf(&b, "\nSort: %s", sortLabel(q.Sort))
	return b.String()
}

// FormatOptions lists selectable values as "value (label)" when they differ.
func FormatOptions(opts []model.Option) string {
	var b strings.Builder
	for i, o := range opts {
		if i > 0 {
			b.WriteString("\n")
		}
		if o.Label == o.Value {
			b.WriteString(o.Value)
		} else {
			fmt.Fprintf(&b, "%s (%s)", o.Value, o.Label)
		}
	}
	return b.String()
}

// FormatStats formats the admin dashboard figures.
func FormatStats(s model.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Users: %d\nListings: %d\n", s.Users, s.Tyres)

	if len(s.ListingStatus) > 0 {
		b.WriteString("\nBy status:\n")
		for _, c := range s.ListingStatus {
			fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Value)
		}
	}
	if len(s.ListingCategories) > 0 {
		b.WriteString("\nBy season:\n")
		for _, c := range s.ListingCategories {
			fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Value)
		}
	}
	if n := len(s.DailyListings); n > 0 {
		last := s.DailyListings[n-1]
		fmt.Fprintf(&b, "\nNew listings on %s: %d\n", last.Date, last.Count)
	}
	if n := len(s.DailyUsers); n > 0 {
		last := s.DailyUsers[n-1]
		fmt.Fprintf(&b, "New users on %s: %d\n", last.Date, last.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + " UAH"
}

func sortLabel(k model.SortKey) string {
	if k == model.SortNone {
		k = model.DefaultSort
	}
	for _, o := range model.SortOptions {
		if o.Value == string(k) {
			return o.Label
		}
	}
	return string(k)
}

const buttonsPerRow = 3

// pageKeyboard offers a favourite toggle per listing and a More button
// while the feed has more pages.
func pageKeyboard(items []model.Tyre, hasMore bool) *tgbotapi.InlineKeyboardMarkup {
	rows := buttonRows(items, func(i int, t model.Tyre) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData("☆ "+t.ID, cbFav+":"+t.ID)
	})
	if hasMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("More", cmdMore+":0"),
		))
	}
	return markup(rows)
}

func favKeyboard(items []model.Tyre, mark string) *tgbotapi.InlineKeyboardMarkup {
	return markup(buttonRows(items, func(i int, t model.Tyre) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d", mark, i+1), cbFav+":"+t.ID)
	}))
}

func myKeyboard(tab model.Tab, items []model.Tyre, hasMore bool) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if tab != model.TabDeleted {
		rows = buttonRows(items, func(i int, t model.Tyre) tgbotapi.InlineKeyboardButton {
			return tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 %d", i+1), cbDeleteConfirm+":"+t.ID)
		})
	}
	if hasMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("More", cbMyMore+":"+string(tab)),
		))
	}
	return markup(rows)
}

func moreKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup([][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Try again", cmdMore+":0"),
	)})
}

func retryKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup([][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Retry", cmdRetry+":0"),
	)})
}

func buttonRows(items []model.Tyre, button func(i int, t model.Tyre) tgbotapi.InlineKeyboardButton) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, t := range items {
		row = append(row, button(i, t))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func markup(rows [][]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}
