package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/seuros/folio/internal/storage"
)

// Theme is the persisted colour scheme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme accepts "light" or "dark" in any case.
func ParseTheme(value string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	default:
		return "", fmt.Errorf("unknown theme %q", value)
	}
}

// LoadTheme returns the stored theme, defaulting to dark.
func LoadTheme(ctx context.Context, s storage.Store) Theme {
	raw, ok, err := s.Get(ctx, storage.KeyTheme)
	if err != nil || !ok {
		return ThemeDark
	}
	theme, err := ParseTheme(raw)
	if err != nil {
		return ThemeDark
	}
	return theme
}

// SaveTheme persists t.
func SaveTheme(ctx context.Context, s storage.Store, t Theme) error {
	return s.Set(ctx, storage.KeyTheme, string(t))
}
