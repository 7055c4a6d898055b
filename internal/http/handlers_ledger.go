package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

// ledgerKind binds the shared income/expense page to one collection.
type ledgerKind struct {
	kind       core.Kind
	collection store.Collection
	title      string
	path       string
	list       func(ctx context.Context, userID string) ([]core.Transaction, error)
	add        func(ctx context.Context, userID string, in services.TransactionInput) (core.Transaction, error)
	remove     func(ctx context.Context, userID, id string) error
}

type ledgerPage struct {
	page
	Kind         string
	Path         string
	Items        []core.Transaction
	Total        decimal.Decimal
	ShowCategory bool
	Today        string
}

func (s *Server) incomes() ledgerKind {
	return ledgerKind{
		kind:       core.KindIncome,
		collection: store.Incomes,
		title:      "Incomes",
		path:       "/incomes",
		list:       s.deps.Ledger.Incomes,
		add:        s.deps.Ledger.AddIncome,
		remove:     s.deps.Ledger.DeleteIncome,
	}
}

func (s *Server) expenses() ledgerKind {
	return ledgerKind{
		kind:       core.KindExpense,
		collection: store.Expenses,
		title:      "Expenses",
		path:       "/expenses",
		list:       s.deps.Ledger.Expenses,
		add:        s.deps.Ledger.AddExpense,
		remove:     s.deps.Ledger.DeleteExpense,
	}
}

func (s *Server) handleIncomesPage(w http.ResponseWriter, r *http.Request) {
	s.renderLedger(w, r, s.incomes(), http.StatusOK, nil, nil)
}

func (s *Server) handleExpensesPage(w http.ResponseWriter, r *http.Request) {
	s.renderLedger(w, r, s.expenses(), http.StatusOK, nil, nil)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	s.createTransaction(w, r, s.incomes())
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	s.createTransaction(w, r, s.expenses())
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	s.deleteTransaction(w, r, s.incomes())
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.deleteTransaction(w, r, s.expenses())
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, lk ledgerKind) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := parser.Values("description", "amount", "date")

	tx, err := lk.add(r.Context(), currentUser(r).ID, services.TransactionInput{
		Description: form["description"],
		Amount:      form["amount"],
		Date:        form["date"],
	})
	if err != nil {
		logFailure(r, "Failed to record "+lowerKind(lk.kind), err)
		if parser.IsJSON() {
			writeJSONError(w, err)
			return
		}
		s.renderLedger(w, r, lk, pageStatus(err), err, form)
		return
	}

	if parser.IsJSON() {
		writeJSON(w, http.StatusCreated, transactionJSON(tx))
		return
	}
	redirect(w, r, lk.path+"?ok="+lowerKind(lk.kind)+"-added")
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request, lk ledgerKind) {
	id := r.PathValue("id")
	if err := lk.remove(r.Context(), currentUser(r).ID, id); err != nil {
		logFailure(r, "Failed to delete "+lowerKind(lk.kind), err)
		if statusFor(err) == http.StatusNotFound {
			s.errorPage(w, r, err)
			return
		}
		s.renderLedger(w, r, lk, pageStatus(err), err, nil)
		return
	}
	redirect(w, r, lk.path+"?ok="+lowerKind(lk.kind)+"-deleted")
}

// renderLedger shows the list next to the entry form. A failed
// submission keeps the typed values.
func (s *Server) renderLedger(w http.ResponseWriter, r *http.Request, lk ledgerKind, status int, failure error, form map[string]string) {
	p := ledgerPage{
		page:         s.basePage(r, lk.title, lk.path),
		Kind:         lowerKind(lk.kind),
		Path:         lk.path,
		ShowCategory: lk.kind == core.KindExpense,
		Today:        s.today(),
	}
	for k, v := range form {
		p.Form[k] = v
	}
	if failure != nil {
		p.Notice = ""
		p.fail(failure)
	}

	items, err := lk.list(r.Context(), currentUser(r).ID)
	if err != nil {
		logFailure(r, "Failed to list "+string(lk.collection), err)
		if failure == nil {
			p.fail(err)
		}
	}
	p.Items = items
	for _, tx := range items {
		if tx.HasAmount() {
			p.Total = p.Total.Add(tx.Amount.Decimal)
		}
	}
	s.render(w, r, status, "ledger.html", p)
}

func (s *Server) today() string {
	return core.DateOf(s.now()).String()
}

func lowerKind(k core.Kind) string {
	switch k {
	case core.KindIncome:
		return "income"
	case core.KindExpense:
		return "expense"
	}
	return string(k)
}
