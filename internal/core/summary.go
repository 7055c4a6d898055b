package core

import "github.com/shopspring/decimal"

// Totals is the all-time income/expense position of one user.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// TrendPoint is the summed amount of one kind within one YYYY-MM bucket.
type TrendPoint struct {
	Month  string
	Kind   Kind
	Amount decimal.Decimal
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Summary is everything the dashboard derives from a user's records.
type Summary struct {
	Totals
	Trend      []TrendPoint
	Categories []CategoryAmount
}

// IsEmpty reports whether there is nothing to summarize.
func (s Summary) IsEmpty() bool {
	return s.Income.IsZero() && s.Expenses.IsZero()
}

// GoalProgress is a goal plus the net amount saved since it was created and
// the resulting progress ratio in [0, 1]. Saved may be negative.
type GoalProgress struct {
	Goal     SavingsGoal
	Saved    decimal.Decimal
	Progress decimal.Decimal
}

// Percent returns the progress as a whole percentage for display.
func (g GoalProgress) Percent() int64 {
	return g.Progress.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
