package aggregate

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tx(kind core.Kind, amount, date, category string) core.Transaction {
	t := core.Transaction{Kind: kind, Category: category}
	if amount != "" {
		t.Amount = decimal.NewNullDecimal(dec(amount))
	}
	if date != "" {
		d, err := core.ParseDate(date)
		if err != nil {
			panic(err)
		}
		t.Date = d
	}
	return t
}

func income(amount, date string) core.Transaction {
	return tx(core.KindIncome, amount, date, "")
}

func expense(amount, date, category string) core.Transaction {
	return tx(core.KindExpense, amount, date, category)
}

func TestSummarize_Scenario(t *testing.T) {
	incomes := []core.Transaction{income("500", "2024-01-05"), income("500", "2024-02-05")}
	expenses := []core.Transaction{expense("200", "2024-01-10", "Food")}

	s := Summarize(incomes, expenses)

	assert.True(t, dec("1000").Equal(s.Income), "income %s", s.Income)
	assert.True(t, dec("200").Equal(s.Expenses), "expenses %s", s.Expenses)
	assert.True(t, dec("800").Equal(s.Net), "net %s", s.Net)

	want := []core.TrendPoint{
		{Month: "2024-01", Kind: core.KindIncome, Amount: dec("500")},
		{Month: "2024-01", Kind: core.KindExpense, Amount: dec("200")},
		{Month: "2024-02", Kind: core.KindIncome, Amount: dec("500")},
	}
	require.Len(t, s.Trend, len(want))
	for i, w := range want {
		got := s.Trend[i]
		assert.Equal(t, w.Month, got.Month, "point %d", i)
		assert.Equal(t, w.Kind, got.Kind, "point %d", i)
		assert.True(t, w.Amount.Equal(got.Amount), "point %d amount %s", i, got.Amount)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)

	assert.True(t, s.Income.IsZero())
	assert.True(t, s.Expenses.IsZero())
	assert.True(t, s.Net.IsZero())
	assert.NotNil(t, s.Trend)
	assert.Empty(t, s.Trend)
	assert.NotNil(t, s.Categories)
	assert.Empty(t, s.Categories)
	assert.True(t, s.IsEmpty())
}

func TestComputeTotals_NoDriftOverManySmallAmounts(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	var incomes, expenses []core.Transaction
	var inCents, outCents int64
	for i := 0; i < 10_000; i++ {
		c := r.Int64N(999_999) + 1 // 0.01 .. 9999.99
		a := decimal.New(c, -2)
		if i%3 == 0 {
			expenses = append(expenses, core.Transaction{Kind: core.KindExpense, Amount: decimal.NewNullDecimal(a)})
			outCents += c
		} else {
			incomes = append(incomes, core.Transaction{Kind: core.KindIncome, Amount: decimal.NewNullDecimal(a)})
			inCents += c
		}
	}

	totals := ComputeTotals(incomes, expenses)

	assert.True(t, decimal.New(inCents, -2).Equal(totals.Income), "income %s", totals.Income)
	assert.True(t, decimal.New(outCents, -2).Equal(totals.Expenses), "expenses %s", totals.Expenses)
	assert.True(t, totals.Income.Sub(totals.Expenses).Equal(totals.Net))
	assert.True(t, decimal.New(inCents-outCents, -2).Equal(totals.Net))
}

func TestComputeTotals_PennyAmounts(t *testing.T) {
	incomes := make([]core.Transaction, 10_000)
	for i := range incomes {
		incomes[i] = income("0.01", "2024-01-01")
	}
	assert.Equal(t, "100.00", ComputeTotals(incomes, nil).Income.StringFixed(2))
}

func TestMonthlyTrend_RegroupingIsIdempotent(t *testing.T) {
	incomes := []core.Transaction{
		income("10.10", "2024-03-31"),
		income("5.05", "2024-03-01"),
		income("1.00", "2023-12-15"),
	}
	expenses := []core.Transaction{
		expense("2.50", "2024-03-02", "Food"),
		expense("7.25", "2024-04-09", "Food"),
		expense("0.75", "2024-04-30", "Health"),
	}
	first := MonthlyTrend(incomes, expenses)

	// Feed each group back in as a single record dated at the start of its month.
	var regIn, regOut []core.Transaction
	for _, p := range first {
		r := tx(p.Kind, p.Amount.String(), p.Month+"-01", "")
		if p.Kind == core.KindIncome {
			regIn = append(regIn, r)
		} else {
			regOut = append(regOut, r)
		}
	}
	second := MonthlyTrend(regIn, regOut)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Month, second[i].Month)
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
	assert.True(t, ComputeTotals(incomes, expenses).Net.Equal(ComputeTotals(regIn, regOut).Net))
}

func TestMonthlyTrend_OmitsEmptyMonthsAndUndatedRecords(t *testing.T) {
	incomes := []core.Transaction{income("100", "2024-01-15"), income("40", "")}
	expenses := []core.Transaction{expense("30", "2024-06-01", "Food")}

	trend := MonthlyTrend(incomes, expenses)

	require.Len(t, trend, 2)
	assert.Equal(t, "2024-01", trend[0].Month)
	assert.Equal(t, "2024-06", trend[1].Month)
	// The undated income still counts towards the lifetime total.
	assert.True(t, dec("140").Equal(ComputeTotals(incomes, expenses).Income))
}

func TestCategoryDistribution(t *testing.T) {
	expenses := []core.Transaction{
		expense("100", "2024-01-01", "Food"),
		expense("50", "2024-01-02", "Food"),
		expense("30", "2024-01-03", "Transport"),
	}

	rows := CategoryDistribution(expenses)

	got := make(map[string]string, len(rows))
	for _, r := range rows {
		got[r.Name] = r.Amount.String()
	}
	assert.Equal(t, map[string]string{"Food": "150", "Transport": "30"}, got)
}

func TestCategoryDistribution_OpenSetAndLegacyRecords(t *testing.T) {
	expenses := []core.Transaction{
		expense("12", "2024-01-01", "Pet Supplies"),
		expense("8", "2024-01-01", ""),
		expense("", "2024-01-01", "Food"), // no amount: skipped entirely
	}

	rows := CategoryDistribution(expenses)

	require.Len(t, rows, 2)
	assert.Equal(t, "Pet Supplies", rows[0].Name)
	assert.Equal(t, core.Uncategorized, rows[1].Name)
}

func TestSum_SkipsMissingAmounts(t *testing.T) {
	txs := []core.Transaction{income("1.25", "2024-01-01"), income("", "2024-01-02")}
	assert.True(t, dec("1.25").Equal(Sum(txs)))
}
