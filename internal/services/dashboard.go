package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/records"
)

// Summarizer writes the AI health summary of aggregated figures.
type Summarizer interface {
	Summarize(ctx context.Context, currency core.Currency, s core.Summary) (string, error)
}

// Insight is a cached AI summary together with the data it describes.
type Insight struct {
	Fingerprint string
	Text        string
}

// Dashboard is everything the dashboard page renders except the AI
// summary, which is loaded separately so a slow model never delays it.
type Dashboard struct {
	Profile core.UserProfile
	core.Summary
}

// DashboardService aggregates a user's records on every request and
// caches the AI summary per user until the figures change.
type DashboardService struct {
	records    *records.Repository
	summarizer Summarizer
	insights   cache.Cache[Insight]
}

func NewDashboardService(repo *records.Repository, summarizer Summarizer, insights cache.Cache[Insight]) *DashboardService {
	return &DashboardService{records: repo, summarizer: summarizer, insights: insights}
}

// Load reads the profile and all transactions concurrently and aggregates
// them.
func (s *DashboardService) Load(ctx context.Context, userID string) (Dashboard, error) {
	var (
		profile           core.UserProfile
		incomes, expenses []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = profileOrDefault(gctx, s.records, userID)
		return err
	})
	g.Go(func() (err error) {
		incomes, err = s.records.ListIncomes(gctx, userID, records.ListOptions{})
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.records.ListExpenses(gctx, userID, records.ListOptions{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	return Dashboard{Profile: profile, Summary: aggregate.Summarize(incomes, expenses)}, nil
}

// Insight returns the AI summary for d. It is empty when there is nothing
// to summarize or no model is configured. Failures are returned as
// ExternalServiceError and nothing is cached.
func (s *DashboardService) Insight(ctx context.Context, d Dashboard) (string, error) {
	if d.IsEmpty() || s.summarizer == nil {
		return "", nil
	}

	key := d.Profile.UserID
	fp := fingerprint(d.Profile.Currency, d.Summary)
	if s.insights != nil {
		if cached, ok := s.insights.Get(key); ok && cached.Fingerprint == fp {
			slog.DebugContext(ctx, "AI summary served from cache", "user_id", key)
			return cached.Text, nil
		}
	}

	text, err := s.summarizer.Summarize(ctx, d.Profile.Currency, d.Summary)
	if err != nil {
		return "", err
	}
	if s.insights != nil {
		s.insights.Set(key, Insight{Fingerprint: fp, Text: text})
	}
	return text, nil
}

// Refresh drops the cached AI summary of a user.
func (s *DashboardService) Refresh(userID string) {
	if s.insights != nil {
		s.insights.Delete(userID)
	}
}

// fingerprint identifies the figures an AI summary was written for.
func fingerprint(currency core.Currency, sum core.Summary) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", currency, sum.Income.String(), sum.Expenses.String())
	for _, c := range sum.Categories {
		fmt.Fprintf(h, "|%s=%s", c.Name, c.Amount.String())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
