package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Amounts are fixed two-decimal strings so clients never see float
// rounding.

type totalsJSON struct {
	Currency string `json:"currency"`
	Income   string `json:"total_income"`
	Expenses string `json:"total_expenses"`
	Net      string `json:"net_income"`
}

type trendJSON struct {
	Month  string `json:"month"`
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
}

type categoryJSON struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type dashboardJSON struct {
	Totals     totalsJSON     `json:"totals"`
	Trend      []trendJSON    `json:"monthly_trend"`
	Categories []categoryJSON `json:"category_distribution"`
}

type goalJSONBody struct {
	ID            string  `json:"id"`
	ProductName   string  `json:"product_name"`
	Price         string  `json:"price"`
	TargetDate    string  `json:"target_date"`
	MonthlySaving string  `json:"monthly_saving"`
	SavedToDate   string  `json:"saved_to_date"`
	ProgressRatio float64 `json:"progress_ratio"`
	CreatedAt     string  `json:"created_at"`
}

type transactionJSONBody struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	Amount      *string `json:"amount"`
	Date        string  `json:"date,omitempty"`
	Category    string  `json:"category,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Dashboard.Load(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to load dashboard", err)
		writeJSONError(w, err)
		return
	}

	body := dashboardJSON{
		Totals: totalsJSON{
			Currency: string(d.Profile.Currency),
			Income:   fixed(d.Income),
			Expenses: fixed(d.Expenses),
			Net:      fixed(d.Net),
		},
		Trend:      make([]trendJSON, 0, len(d.Trend)),
		Categories: make([]categoryJSON, 0, len(d.Categories)),
	}
	for _, p := range d.Trend {
		body.Trend = append(body.Trend, trendJSON{Month: p.Month, Kind: string(p.Kind), Amount: fixed(p.Amount)})
	}
	for _, c := range d.Categories {
		body.Categories = append(body.Categories, categoryJSON{Category: c.Name, Amount: fixed(c.Amount)})
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAPIGoals(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Ledger.Goals(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to list savings goals", err)
		writeJSONError(w, err)
		return
	}
	out := make([]goalJSONBody, 0, len(list))
	for _, g := range list {
		out = append(out, goalJSON(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func goalJSON(g core.GoalProgress) goalJSONBody {
	ratio, _ := g.Progress.Float64()
	return goalJSONBody{
		ID:            g.Goal.ID,
		ProductName:   g.Goal.ProductName,
		Price:         fixed(g.Goal.Price),
		TargetDate:    g.Goal.TargetDate.String(),
		MonthlySaving: fixed(g.Goal.MonthlySaving),
		SavedToDate:   fixed(g.Saved),
		ProgressRatio: ratio,
		CreatedAt:     g.Goal.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func transactionJSON(tx core.Transaction) transactionJSONBody {
	out := transactionJSONBody{
		ID:          tx.ID,
		Kind:        string(tx.Kind),
		Description: tx.Description,
		Date:        tx.Date.String(),
		Category:    tx.Category,
		CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.HasAmount() {
		amount := fixed(tx.Amount.Decimal)
		out.Amount = &amount
	}
	return out
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}
