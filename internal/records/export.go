package records

import (
	"context"
	"fmt"
	"iter"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Exported lists the collections mirrored to the spreadsheet export.
var Exported = []store.Collection{store.Incomes, store.Expenses, store.SavingsGoals}

// Snapshot is a flat, string-valued copy of a ledger record.
type Snapshot struct {
	Collection store.Collection
	ID         string
	UserID     string
	Fields     map[string]string
}

// TransactionSnapshot flattens an income or expense.
func TransactionSnapshot(tx core.Transaction) map[string]string {
	rec := map[string]string{
		store.FieldUserID:    tx.UserID,
		store.FieldDate:      tx.Date.String(),
		fDescription:         tx.Description,
		fAmount:              "",
		store.FieldCreatedAt: stamp(tx.CreatedAt),
	}
	if tx.HasAmount() {
		rec[fAmount] = tx.Amount.Decimal.StringFixed(2)
	}
	if tx.Kind == core.KindExpense {
		rec[fCategory] = tx.Category
	}
	return rec
}

// GoalSnapshot flattens a savings goal.
func GoalSnapshot(g core.SavingsGoal) map[string]string {
	return map[string]string{
		store.FieldUserID:    g.UserID,
		fProductName:         g.ProductName,
		fPrice:               g.Price.StringFixed(2),
		fTargetDate:          g.TargetDate.String(),
		fMonthlySaving:       g.MonthlySaving.StringFixed(2),
		store.FieldCreatedAt: stamp(g.CreatedAt),
	}
}

// Lookup reads one ledger record by id regardless of its owner. It serves
// the export worker, never a user request.
func (r *Repository) Lookup(ctx context.Context, c store.Collection, id string) (Snapshot, error) {
	doc, err := r.store.Get(ctx, c, id)
	if err != nil {
		return Snapshot{}, wrap(err)
	}
	return snapshotOf(c, doc)
}

// Scan yields every record of an exported collection across all users.
func (r *Repository) Scan(ctx context.Context, c store.Collection) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		for doc, err := range r.store.List(ctx, c, store.Query{}) {
			if err != nil {
				yield(Snapshot{}, wrap(err))
				return
			}
			snap, err := snapshotOf(c, doc)
			if !yield(snap, err) || err != nil {
				return
			}
		}
	}
}

func snapshotOf(c store.Collection, doc store.Document) (Snapshot, error) {
	snap := Snapshot{Collection: c, ID: str(doc, store.FieldID), UserID: str(doc, store.FieldUserID)}
	switch c {
	case store.Incomes:
		snap.Fields = TransactionSnapshot(decodeTransaction(core.KindIncome, doc))
	case store.Expenses:
		snap.Fields = TransactionSnapshot(decodeTransaction(core.KindExpense, doc))
	case store.SavingsGoals:
		snap.Fields = GoalSnapshot(decodeGoal(doc))
	default:
		return Snapshot{}, fmt.Errorf("collection %s has no ledger snapshot", c)
	}
	return snap, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
