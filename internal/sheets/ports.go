// Package sheets defines the spreadsheet export of the ledger. Each
// collection gets its own sheet whose first two columns are the record id
// and its status; deleted records are marked, never removed.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/store"
)

const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

var ErrUnknownCollection = errors.New("collection is not exported")

// LedgerExporter mirrors ledger records into a spreadsheet. Both operations
// are idempotent so redelivered events are harmless.
type LedgerExporter interface {
	AppendRecord(ctx context.Context, collection store.Collection, id string, record map[string]string) (rowRef string, err error)
	MarkDeleted(ctx context.Context, collection store.Collection, id string) error
}

type layout struct {
	sheet   string
	columns []string
}

var layouts = map[store.Collection]layout{
	store.Incomes: {
		sheet:   "Incomes",
		columns: []string{"user_id", "date", "description", "amount", "created_at"},
	},
	store.Expenses: {
		sheet:   "Expenses",
		columns: []string{"user_id", "date", "description", "category", "amount", "created_at"},
	},
	store.SavingsGoals: {
		sheet:   "Savings Goals",
		columns: []string{"user_id", "product_name", "price", "target_date", "monthly_saving", "created_at"},
	},
}

// SheetName returns the sheet a collection is exported to.
func SheetName(collection store.Collection) (string, error) {
	l, ok := layouts[collection]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return l.sheet, nil
}

// Header returns the header row of a collection's sheet.
func Header(collection store.Collection) ([]string, error) {
	l, ok := layouts[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return append([]string{"id", "status"}, l.columns...), nil
}

// Row renders an active record in header order. Missing fields are blank.
func Row(collection store.Collection, id string, record map[string]string) ([]string, error) {
	l, ok := layouts[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	row := make([]string, 0, len(l.columns)+2)
	row = append(row, id, StatusActive)
	for _, c := range l.columns {
		row = append(row, record[c])
	}
	return row, nil
}
