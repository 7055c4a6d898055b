package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"

	ThemeLight Theme = "Light"
	ThemeDark  Theme = "Dark"
)

type (
	Currency string
	Theme    string

	// UserProfile holds per-user preferences. Currency only changes how
	// amounts are displayed; nothing is converted.
	UserProfile struct {
		UserID    string
		Email     string
		Name      string
		Currency  Currency
		Theme     Theme
		CreatedAt time.Time
	}
)

// Currencies lists the display currencies a user can pick.
var Currencies = []Currency{USD, EUR, GBP, INR}

// Themes lists the selectable UI themes.
var Themes = []Theme{ThemeLight, ThemeDark}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c, nil
		}
	}
	return "", invalid("currency", ErrInvalidCurrency)
}

func ParseTheme(s string) (Theme, error) {
	s = strings.TrimSpace(s)
	for _, known := range Themes {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", invalid("theme", ErrInvalidTheme)
}

// NewProfile returns a profile with default preferences.
func NewProfile(userID, email string, now time.Time) UserProfile {
	return UserProfile{
		UserID:    userID,
		Email:     email,
		Currency:  USD,
		Theme:     ThemeLight,
		CreatedAt: now,
	}
}

// Format renders an amount prefixed with the currency code, e.g. "EUR 12.50".
func (c Currency) Format(d decimal.Decimal) string {
	if c == "" {
		c = USD
	}
	return string(c) + " " + FormatAmount(d)
}

func (p UserProfile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return invalid("user", ErrMissingUser)
	}
	if len(p.Name) > MaxDescriptionLength {
		return invalid("name", ErrTextTooLong)
	}
	if _, err := ParseCurrency(string(p.Currency)); err != nil {
		return err
	}
	if _, err := ParseTheme(string(p.Theme)); err != nil {
		return err
	}
	return nil
}
