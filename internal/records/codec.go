package records

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Field names of stored records.
const (
	fDescription   = "description"
	fAmount        = "amount"
	fCategory      = "category"
	fProductName   = "product_name"
	fPrice         = "price"
	fTargetDate    = "target_date"
	fMonthlySaving = "monthly_saving"
	fCreatedOn     = "created_on"
	fEmail         = "email"
	fName          = "name"
	fCurrency      = "currency"
	fTheme         = "theme"
	fRole          = "role"
	fContent       = "content"
	fPosition      = "position"
)

func encodeTransaction(tx core.Transaction) store.Document {
	doc := store.Document{
		store.FieldUserID: tx.UserID,
		fDescription:      tx.Description,
		fAmount:           tx.Amount.Decimal.StringFixed(2),
		store.FieldDate:   tx.Date.String(),
	}
	if tx.Kind == core.KindExpense {
		doc[fCategory] = tx.Category
	}
	if !tx.CreatedAt.IsZero() {
		doc[store.FieldCreatedAt] = tx.CreatedAt.UTC()
	}
	return doc
}

// decodeTransaction never fails: fields that are missing or unreadable
// decode to their "absent" value and the aggregation layer skips them.
func decodeTransaction(kind core.Kind, doc store.Document) core.Transaction {
	tx := core.Transaction{
		ID:          str(doc, store.FieldID),
		UserID:      str(doc, store.FieldUserID),
		Kind:        kind,
		Description: str(doc, fDescription),
		Amount:      amount(doc, fAmount),
		Date:        date(doc, store.FieldDate),
		CreatedAt:   timestamp(doc, store.FieldCreatedAt),
	}
	if kind == core.KindExpense {
		tx.Category = strings.TrimSpace(str(doc, fCategory))
		if tx.Category == "" {
			tx.Category = core.Uncategorized
		}
	}
	return tx
}

func encodeGoal(g core.SavingsGoal) store.Document {
	doc := store.Document{
		store.FieldUserID: g.UserID,
		fProductName:      g.ProductName,
		fPrice:            g.Price.StringFixed(2),
		fTargetDate:       g.TargetDate.String(),
		fMonthlySaving:    g.MonthlySaving.StringFixed(2),
	}
	if !g.CreatedAt.IsZero() {
		doc[store.FieldCreatedAt] = g.CreatedAt.UTC()
	}
	if !g.CreatedOn.IsZero() {
		doc[fCreatedOn] = g.CreatedOn.String()
	}
	return doc
}

func decodeGoal(doc store.Document) core.SavingsGoal {
	return core.SavingsGoal{
		ID:            str(doc, store.FieldID),
		UserID:        str(doc, store.FieldUserID),
		ProductName:   str(doc, fProductName),
		Price:         amount(doc, fPrice).Decimal,
		TargetDate:    date(doc, fTargetDate),
		MonthlySaving: amount(doc, fMonthlySaving).Decimal,
		CreatedAt:     timestamp(doc, store.FieldCreatedAt),
		CreatedOn:     date(doc, fCreatedOn),
	}
}

func encodeProfile(p core.UserProfile) store.Document {
	doc := store.Document{
		fEmail:    p.Email,
		fName:     p.Name,
		fCurrency: string(p.Currency),
		fTheme:    string(p.Theme),
	}
	if !p.CreatedAt.IsZero() {
		doc[store.FieldCreatedAt] = p.CreatedAt.UTC()
	}
	return doc
}

// decodeProfile falls back to default preferences for unknown or missing
// values.
func decodeProfile(userID string, doc store.Document) core.UserProfile {
	p := core.UserProfile{
		UserID:    userID,
		Email:     str(doc, fEmail),
		Name:      str(doc, fName),
		Currency:  core.USD,
		Theme:     core.ThemeLight,
		CreatedAt: timestamp(doc, store.FieldCreatedAt),
	}
	if c, err := core.ParseCurrency(str(doc, fCurrency)); err == nil {
		p.Currency = c
	}
	if t, err := core.ParseTheme(str(doc, fTheme)); err == nil {
		p.Theme = t
	}
	return p
}

func decodeMessage(doc store.Document) core.ChatMessage {
	return core.ChatMessage{
		Role:      str(doc, fRole),
		Content:   str(doc, fContent),
		CreatedAt: timestamp(doc, store.FieldCreatedAt),
	}
}

func str(doc store.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// amount accepts decimal strings as well as numbers written by older
// clients. Anything else is reported as absent.
func amount(doc store.Document, key string) decimal.NullDecimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := doc[key].(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case decimal.Decimal:
		d = v
	default:
		return decimal.NullDecimal{}
	}
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// date reads a calendar date stored as YYYY-MM-DD, an RFC 3339 timestamp or
// a native time value.
func date(doc store.Document, key string) core.Date {
	switch v := doc[key].(type) {
	case string:
		if d, err := core.ParseDate(v); err == nil {
			return d
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return core.DateOf(t)
		}
	case time.Time:
		return core.DateOf(v)
	}
	return core.Date{}
}

func timestamp(doc store.Document, key string) time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
