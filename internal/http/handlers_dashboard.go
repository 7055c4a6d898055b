package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// trendRow is one month of the trend chart.
type trendRow struct {
	Month   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

type dashboardPage struct {
	page
	core.Summary
	Rows        []trendRow
	TrendMax    decimal.Decimal
	CategoryMax decimal.Decimal
}

type summaryPartial struct {
	Insight       string
	Empty         bool
	NotConfigured bool
	Error         string
}

// handleDashboard renders the figures immediately; the AI summary is
// fetched by the page from /ui/summary.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := dashboardPage{page: s.basePage(r, "Dashboard", "/")}

	d, err := s.deps.Dashboard.Load(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to load dashboard", err)
		p.fail(err)
		s.render(w, r, http.StatusOK, "dashboard.html", p)
		return
	}
	p.Profile = d.Profile
	if p.Profile.Email == "" {
		p.Profile.Email = p.Email
	}
	p.Summary = d.Summary
	p.Rows = trendRows(d.Trend)
	for _, row := range p.Rows {
		p.TrendMax = decimal.Max(p.TrendMax, row.Income, row.Expense)
	}
	for _, c := range d.Categories {
		p.CategoryMax = decimal.Max(p.CategoryMax, c.Amount)
	}
	s.render(w, r, http.StatusOK, "dashboard.html", p)
}

// handleSummary always answers 200 so the fragment replaces the
// placeholder whatever happened.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var part summaryPartial

	d, err := s.deps.Dashboard.Load(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to load figures for AI summary", err)
		part.Error = messageFor(err)
		s.render(w, r, http.StatusOK, "summary.html", part)
		return
	}

	switch text, err := s.deps.Dashboard.Insight(r.Context(), d); {
	case err != nil:
		logFailure(r, "AI summary failed", err)
		part.Error = "The AI summary is unavailable right now."
	case d.IsEmpty():
		part.Empty = true
	case text == "":
		part.NotConfigured = true
	default:
		part.Insight = text
	}
	s.render(w, r, http.StatusOK, "summary.html", part)
}

// handleRefresh drops the cached summary so the next load asks the model
// again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	s.deps.Dashboard.Refresh(u.ID)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "AI summary cache invalidated",
		applog.FieldUserID, u.ID)

	if isHTMX(r) {
		NewHTMXResponse().TriggerSummaryRefresh().Status(http.StatusNoContent).Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func trendRows(points []core.TrendPoint) []trendRow {
	var rows []trendRow
	for _, p := range points {
		if len(rows) == 0 || rows[len(rows)-1].Month != p.Month {
			rows = append(rows, trendRow{Month: p.Month})
		}
		row := &rows[len(rows)-1]
		switch p.Kind {
		case core.KindIncome:
			row.Income = p.Amount
		case core.KindExpense:
			row.Expense = p.Amount
		}
	}
	return rows
}
