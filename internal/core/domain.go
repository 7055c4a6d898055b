package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "Income"
	KindExpense Kind = "Expense"
)

// MaxDescriptionLength bounds free-text descriptions and product names.
const MaxDescriptionLength = 200

// Uncategorized labels expenses stored without a category.
const Uncategorized = "Uncategorized"

type (
	Kind string

	// Date is a calendar day. The zero value means "no date recorded".
	Date struct {
		time.Time
	}

	// Transaction is a single income or expense record owned by one user.
	// Amount is invalid (Valid=false) when the stored record had no usable
	// amount; such records are skipped by every sum.
	Transaction struct {
		ID          string
		UserID      string
		Kind        Kind
		Description string
		Amount      decimal.NullDecimal
		Date        Date
		Category    string // expenses only
		CreatedAt   time.Time
	}

	SavingsGoal struct {
		ID            string
		UserID        string
		ProductName   string
		Price         decimal.Decimal
		TargetDate    Date
		MonthlySaving decimal.Decimal
		CreatedAt     time.Time
		// CreatedOn is the calendar day the goal was planned on, in the
		// planner's zone. Progress counts records dated from this day.
		CreatedOn     Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// HasAmount reports whether the transaction carries a usable amount.
func (t Transaction) HasAmount() bool {
	return t.Amount.Valid
}

// Validate checks a transaction about to be recorded. Stored records may be
// incomplete; this applies to new input only.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return invalid("user", ErrMissingUser)
	}
	if err := validateText("description", t.Description, ErrEmptyDescription); err != nil {
		return err
	}
	if !t.Amount.Valid || !t.Amount.Decimal.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if t.Date.IsZero() {
		return invalid("date", ErrMissingDate)
	}
	switch t.Kind {
	case KindIncome, KindExpense:
	default:
		return invalid("kind", ErrInvalidKind)
	}
	return nil
}

// Validate checks the user-supplied part of a goal. The target date check
// needs a clock and lives with the planner.
func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return invalid("user", ErrMissingUser)
	}
	if err := validateText("product_name", g.ProductName, ErrEmptyProductName); err != nil {
		return err
	}
	if !g.Price.IsPositive() {
		return invalid("price", ErrInvalidAmount)
	}
	if g.TargetDate.IsZero() {
		return invalid("target_date", ErrMissingDate)
	}
	return nil
}

func validateText(field, s string, empty error) error {
	if strings.TrimSpace(s) == "" {
		return invalid(field, empty)
	}
	if len(s) > MaxDescriptionLength {
		return invalid(field, ErrTextTooLong)
	}
	return nil
}

// StartDate is the first day whose records count towards the goal. Goals
// stored without a creation day fall back to the day of CreatedAt.
func (g SavingsGoal) StartDate() Date {
	if !g.CreatedOn.IsZero() {
		return g.CreatedOn
	}
	return DateOf(g.CreatedAt)
}
