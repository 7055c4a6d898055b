// Package aggregate turns a user's raw income and expense records into the
// totals, monthly trend and category distribution shown on the dashboard.
//
// Every function is pure: inputs are plain slices, nothing is cached or
// mutated, and calls may be repeated or interleaved freely. Records without
// a usable amount are skipped; records without a date still count towards
// totals but fall outside every month bucket.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Sum adds up every transaction that has an amount.
func Sum(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.HasAmount() {
			total = total.Add(tx.Amount.Decimal)
		}
	}
	return total
}

// ComputeTotals returns total income, total expenses and their difference.
func ComputeTotals(incomes, expenses []core.Transaction) core.Totals {
	in := Sum(incomes)
	out := Sum(expenses)
	return core.Totals{
		Income:   in,
		Expenses: out,
		Net:      in.Sub(out),
	}
}

// MonthlyTrend groups incomes and expenses by calendar month and returns
// one point per (month, kind) that has at least one record. Points are
// ordered by month; within a month the income point comes first. Empty
// months are omitted, not zero-filled.
func MonthlyTrend(incomes, expenses []core.Transaction) []core.TrendPoint {
	points := append(
		monthly(core.KindIncome, incomes),
		monthly(core.KindExpense, expenses)...,
	)
	slices.SortStableFunc(points, func(a, b core.TrendPoint) int {
		if c := cmp.Compare(a.Month, b.Month); c != 0 {
			return c
		}
		return cmp.Compare(kindOrder(a.Kind), kindOrder(b.Kind))
	})
	return points
}

func monthly(kind core.Kind, txs []core.Transaction) []core.TrendPoint {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		month := tx.Date.MonthKey()
		if month == "" || !tx.HasAmount() {
			continue
		}
		sums[month] = sums[month].Add(tx.Amount.Decimal)
	}
	points := make([]core.TrendPoint, 0, len(sums))
	for month, amount := range sums {
		points = append(points, core.TrendPoint{Month: month, Kind: kind, Amount: amount})
	}
	return points
}

func kindOrder(k core.Kind) int {
	if k == core.KindIncome {
		return 0
	}
	return 1
}

// CategoryDistribution sums expenses per category. Categories are whatever
// strings the records carry; expenses without one are grouped under
// core.Uncategorized. Rows are sorted by amount descending, then by name.
func CategoryDistribution(expenses []core.Transaction) []core.CategoryAmount {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range expenses {
		if !tx.HasAmount() {
			continue
		}
		name := tx.Category
		if name == "" {
			name = core.Uncategorized
		}
		sums[name] = sums[name].Add(tx.Amount.Decimal)
	}
	rows := make([]core.CategoryAmount, 0, len(sums))
	for name, amount := range sums {
		rows = append(rows, core.CategoryAmount{Name: name, Amount: amount})
	}
	slices.SortFunc(rows, func(a, b core.CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

// Summarize computes every dashboard aggregate in one pass over the inputs.
func Summarize(incomes, expenses []core.Transaction) core.Summary {
	return core.Summary{
		Totals:     ComputeTotals(incomes, expenses),
		Trend:      MonthlyTrend(incomes, expenses),
		Categories: CategoryDistribution(expenses),
	}
}
