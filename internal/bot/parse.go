package bot

import (
	"fmt"
	"strings"

	"tyres_bot/internal/model"
)

// ParseSetArgs parses arguments for /set.
// Format: <field> <value...>
func ParseSetArgs(args string) (string, string, error) {
	field, value, ok := strings.Cut(strings.TrimSpace(args), " ")
	if field == "" || !ok || strings.TrimSpace(value) == "" {
		return "", "", fmt.Errorf("usage: /set <field> <value>")
	}
	return field, strings.TrimSpace(value), nil
}

// ParseIDArg extracts a listing ID from a command argument string.
func ParseIDArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("listing ID is required")
	}
	return fields[0], nil
}

// ParseLoginArgs extracts an email and password from command arguments.
func ParseLoginArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("usage: /login <email> <password>")
	}
	if !strings.Contains(parts[0], "@") {
		return "", "", fmt.Errorf("invalid email %q", parts[0])
	}
	return parts[0], parts[1], nil
}

// ParseDraftArgs parses listing fields for /new and /edit.
// Format: <field>=<value> ...; a value runs until the next <field>=.
func ParseDraftArgs(args string) (model.Draft, error) {
	d := model.Draft{}
	var current string
	for _, tok := range strings.Fields(args) {
		if k, v, ok := strings.Cut(tok, "="); ok && isIdent(k) {
			if !model.IsDraftField(k) {
				return nil, fmt.Errorf("unknown field %q. Fields: %s", k, strings.Join(model.DraftFields(), ", "))
			}
			d[k] = v
			current = k
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("expected <field>=<value>, got %q", tok)
		}
		d[current] = strings.TrimSpace(d[current] + " " + tok)
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("no fields given")
	}
	return d, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
