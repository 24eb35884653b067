package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Draft holds the editable fields of a listing, keyed by their backend names.
// Values are sent as the strings the user typed.
type Draft map[string]string

var draftFields = []string{
	"brand",
	"model",
	"width",
	"height",
	"radius",
	"quantity",
	"season",
	"vehicle",
	"year",
	"treadDepth",
	"treadPercent",
	"city",
	"condition",
	"price",
	"contact",
	"description",
}

// Fields a new listing cannot be created without.
var requiredDraftFields = []string{
	"brand", "year", "width", "height", "radius", "quantity", "season",
	"vehicle", "condition", "city", "price", "contact", "description",
}

// DraftFields returns the editable listing fields in form order.
func DraftFields() []string {
	return slices.Clone(draftFields)
}

// IsDraftField reports whether name is an editable listing field.
func IsDraftField(name string) bool {
	return slices.Contains(draftFields, name)
}

// DraftFrom returns the form fields of an existing listing.
func DraftFrom(t Tyre) Draft {
	d := Draft{
		"brand":        t.Brand,
		"model":        t.Model,
		"width":        t.Width,
		"height":       t.Height,
		"radius":       t.Radius,
		"season":       t.Season,
		"vehicle":      t.Vehicle,
		"treadDepth":   t.TreadDepth,
		"treadPercent": t.TreadPercent,
		"city":         t.City,
		"condition":    t.Condition,
		"contact":      t.Contact,
		"description":  t.Description,
	}
	if t.Quantity > 0 {
		d["quantity"] = strconv.Itoa(t.Quantity)
	}
	if t.Year > 0 {
		d["year"] = strconv.Itoa(t.Year)
	}
	if t.Price > 0 {
		d["price"] = strconv.FormatFloat(t.Price, 'f', -1, 64)
	}
	return d
}

// Title is the listing title the backend expects for the draft's size.
func (d Draft) Title() string {
	return d["width"] + "/" + d["height"] + "/" + d["radius"]
}

// Validate checks the draft against the listing form rules. A partial draft
// is an edit: only the fields it carries are checked.
func (d Draft) Validate(partial bool, now time.Time) error {
	for k := range d {
		if !IsDraftField(k) {
			return fmt.Errorf("unknown field %q", k)
		}
	}

	if !partial {
		for _, k := range requiredDraftFields {
			if strings.TrimSpace(d[k]) == "" {
				return fmt.Errorf("%s is required", k)
			}
		}
		if d["treadDepth"] == "" && d["treadPercent"] == "" {
			return fmt.Errorf("treadDepth or treadPercent is required")
		}
	}

	for _, k := range draftFields {
		v, ok := d[k]
		if !ok {
			continue
		}
		if err := validateDraftValue(k, v, now); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

func validateDraftValue(field, v string, now time.Time) error {
	v = strings.TrimSpace(v)
	switch field {
	case "model", "treadDepth", "treadPercent":
		if v == "" {
			return nil
		}
	}
	if v == "" && slices.Contains(requiredDraftFields, field) {
		return fmt.Errorf("must not be empty")
	}

	switch field {
	case "width", "height", "radius", "price":
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("must be a positive number")
		}
	case "quantity":
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("must be a positive whole number")
		}
	case "year":
		n, err := strconv.Atoi(v)
		if err != nil || n < 1900 || n > now.Year() {
			return fmt.Errorf("must be between 1900 and %d", now.Year())
		}
	case "treadDepth":
		return inRange(v, 0, 12)
	case "treadPercent":
		return inRange(v, 0, 100)
	case "contact":
		if _, err := strconv.ParseUint(strings.TrimPrefix(v, "+"), 10, 64); err != nil {
			return fmt.Errorf("must be a phone number")
		}
	case "season":
		return oneOf(v, seasons)
	case "vehicle":
		return oneOf(v, vehicleTypes)
	case "condition":
		return oneOf(v, conditions)
	}
	return nil
}

func inRange(v string, lo, hi float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo || f > hi {
		return fmt.Errorf("must be between %g and %g", lo, hi)
	}
	return nil
}

func oneOf(v string, allowed []string) error {
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
	return nil
}

// Profile is the signed-in user's account record.
type Profile struct {
	ID            string `json:"_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	City          string `json:"city,omitempty"`
	Phone         string `json:"phone,omitempty"`
	PhoneVerified bool   `json:"phoneVerified"`
	IsAdmin       bool   `json:"isAdmin"`
}

// ProfileUpdate is the editable part of a Profile.
type ProfileUpdate struct {
	Name  string `json:"name"`
	City  string `json:"city"`
	Phone string `json:"phone,omitempty"`
}

// Validate applies the profile form rules.
func (u ProfileUpdate) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(u.Name)) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(u.City)) < 4 {
		return fmt.Errorf("city must be at least 4 characters")
	}
	return nil
}

// ValidatePassword applies the password rules: at least 6 characters with a
// lower-case letter, an upper-case letter, a digit and a special character.
func ValidatePassword(p string) error {
	if len(p) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	var lower, upper, digit, special bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	switch {
	case !lower:
		return fmt.Errorf("password must contain a lower-case letter")
	case !upper:
		return fmt.Errorf("password must contain an upper-case letter")
	case !digit:
		return fmt.Errorf("password must contain a digit")
	case !special:
		return fmt.Errorf("password must contain a special character")
	}
	return nil
}
