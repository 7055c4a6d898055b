package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-02-29" || d.MonthKey() != "2024-02" {
		t.Fatalf("got %s / %s", d.String(), d.MonthKey())
	}
	for _, bad := range []string{"", "2023-02-29", "15/01/2024", "2024-1-5"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	got := DateOf(time.Date(2024, 3, 31, 23, 30, 0, 0, loc))
	if got.String() != "2024-03-31" {
		t.Fatalf("expected calendar day in source location, got %s", got)
	}
	if !DateOf(time.Time{}).IsZero() {
		t.Fatal("zero time must map to zero date")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:      "u1",
		Kind:        KindExpense,
		Description: "Coffee",
		Amount:      amount("3.50"),
		Date:        NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*Transaction)
		field string
		err   error
	}{
		{"no user", func(tx *Transaction) { tx.UserID = "" }, "user", ErrMissingUser},
		{"blank description", func(tx *Transaction) { tx.Description = "  " }, "description", ErrEmptyDescription},
		{"long description", func(tx *Transaction) { tx.Description = strings.Repeat("x", 201) }, "description", ErrTextTooLong},
		{"missing amount", func(tx *Transaction) { tx.Amount = decimal.NullDecimal{} }, "amount", ErrInvalidAmount},
		{"zero amount", func(tx *Transaction) { tx.Amount = amount("0") }, "amount", ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = amount("-1") }, "amount", ErrInvalidAmount},
		{"no date", func(tx *Transaction) { tx.Date = Date{} }, "date", ErrMissingDate},
		{"bad kind", func(tx *Transaction) { tx.Kind = "Transfer" }, "kind", ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := good
			tc.mut(&tx)
			err := tx.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field || !errors.Is(err, tc.err) {
				t.Fatalf("got field=%s err=%v", ve.Field, err)
			}
		})
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	g := SavingsGoal{UserID: "u1", ProductName: "Laptop", Price: decimal.NewFromInt(1200), TargetDate: NewDate(2026, 1, 1)}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	g.Price = decimal.Zero
	if err := g.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestProfileParsing(t *testing.T) {
	if c, err := ParseCurrency(" eur "); err != nil || c != EUR {
		t.Fatalf("got %v %v", c, err)
	}
	if _, err := ParseCurrency("JPY"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if th, err := ParseTheme("dark"); err != nil || th != ThemeDark {
		t.Fatalf("got %v %v", th, err)
	}
	p := NewProfile("u1", "a@b.c", time.Now())
	if p.Currency != USD || p.Theme != ThemeLight {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid defaults, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	ext := External("ai", errors.New("timeout"))
	if !IsExternal(ext) || IsValidation(ext) {
		t.Fatalf("misclassified %v", ext)
	}
	if External("ai", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	if !IsValidation(invalid("amount", ErrInvalidAmount)) {
		t.Fatal("expected validation error")
	}
}
