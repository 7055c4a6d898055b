package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/records"
	"fintrack/internal/store"
)

// ProfileService reads and updates user preferences.
type ProfileService struct {
	records *records.Repository
}

func NewProfileService(repo *records.Repository) *ProfileService {
	return &ProfileService{records: repo}
}

// Profile returns the stored profile, or default preferences when none
// was ever written.
func (s *ProfileService) Profile(ctx context.Context, userID string) (core.UserProfile, error) {
	return profileOrDefault(ctx, s.records, userID)
}

// UpdateSettings applies the settings form. Unknown currencies and themes
// are rejected as validation errors.
func (s *ProfileService) UpdateSettings(ctx context.Context, userID, name, currency, theme string) (core.UserProfile, error) {
	cur, err := core.ParseCurrency(currency)
	if err != nil {
		return core.UserProfile{}, err
	}
	th, err := core.ParseTheme(theme)
	if err != nil {
		return core.UserProfile{}, err
	}
	name = strings.TrimSpace(name)
	if len(name) > core.MaxDescriptionLength {
		return core.UserProfile{}, &core.ValidationError{Field: "name", Err: core.ErrTextTooLong}
	}

	err = s.records.UpdateSettings(ctx, userID, name, cur, th)
	if errors.Is(err, store.ErrNotFound) {
		p := core.NewProfile(userID, "", time.Now())
		p.Name, p.Currency, p.Theme = name, cur, th
		err = s.records.PutProfile(ctx, p)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("update settings: %w", err)
	}

	slog.InfoContext(ctx, "Settings updated", "user_id", userID, "currency", cur, "theme", th)
	return s.Profile(ctx, userID)
}

func profileOrDefault(ctx context.Context, repo *records.Repository, userID string) (core.UserProfile, error) {
	p, err := repo.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return core.NewProfile(userID, "", time.Time{}), nil
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}
