// Package goals converts a target price and date into a monthly saving plan
// and measures progress against it.
//
// Progress uses every income and expense recorded since a goal was created.
// When several goals overlap in time, the same net savings count towards
// each of them; nothing is apportioned between goals.
package goals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

// Planner creates goals relative to an injected clock.
type Planner struct {
	now func() time.Time
}

// NewPlanner returns a planner using now as its clock; nil means time.Now.
func NewPlanner(now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{now: now}
}

// Today returns the planner's current calendar day.
func (p *Planner) Today() core.Date {
	return core.DateOf(p.now())
}

// Plan validates a new goal and fixes its monthly saving. The returned goal
// has no ID; persisting it is the caller's job and must not happen when an
// error is returned.
func (p *Planner) Plan(userID, productName string, price decimal.Decimal, target core.Date) (core.SavingsGoal, error) {
	now := p.now()
	goal := core.SavingsGoal{
		UserID:      userID,
		ProductName: strings.TrimSpace(productName),
		Price:       price,
		TargetDate:  target,
		CreatedAt:   now,
		CreatedOn:   core.DateOf(now),
	}
	if err := goal.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	months := MonthsBetween(goal.CreatedOn, target)
	if months <= 0 {
		return core.SavingsGoal{}, &core.ValidationError{Field: "target_date", Err: core.ErrTargetNotFuture}
	}
	goal.MonthlySaving = MonthlySaving(price, months)
	return goal, nil
}

// MonthsBetween counts calendar-month boundaries from one date to another,
// ignoring the day of month: Jan 31 to Feb 1 is one month.
func MonthsBetween(from, to core.Date) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// MonthlySaving spreads price evenly over months, rounded to cents.
// months must be positive.
func MonthlySaving(price decimal.Decimal, months int) decimal.Decimal {
	return price.DivRound(decimal.NewFromInt(int64(months)), 2)
}

// ComputeProgress measures a goal against the net of all incomes and
// expenses dated on or after the goal's start date. Undated records are
// ignored. The ratio is clamped to [0, 1]; a goal without a positive price
// reports zero progress.
func ComputeProgress(goal core.SavingsGoal, incomes, expenses []core.Transaction) core.GoalProgress {
	since := goal.StartDate()
	saved := aggregate.Sum(datedSince(incomes, since)).Sub(aggregate.Sum(datedSince(expenses, since)))
	return core.GoalProgress{
		Goal:     goal,
		Saved:    saved,
		Progress: Ratio(saved, goal.Price),
	}
}

// ComputeAll runs ComputeProgress for each goal, preserving order.
func ComputeAll(goals []core.SavingsGoal, incomes, expenses []core.Transaction) []core.GoalProgress {
	out := make([]core.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, ComputeProgress(g, incomes, expenses))
	}
	return out
}

// EarliestStart returns the earliest start date among goals, or the zero
// Date when there are none or one has no start date.
func EarliestStart(goals []core.SavingsGoal) core.Date {
	var earliest core.Date
	for i, g := range goals {
		d := g.StartDate()
		if d.IsZero() {
			return core.Date{}
		}
		if i == 0 || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

// Ratio returns saved/price clamped to [0, 1] with four decimal places.
func Ratio(saved, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !saved.IsPositive() {
		return decimal.Zero
	}
	r := saved.DivRound(price, 4)
	if r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return r
}

func datedSince(txs []core.Transaction, since core.Date) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.IsZero() || tx.Date.Before(since) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
