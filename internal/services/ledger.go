package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/goals"
	applog "fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/store"
)

// EventPublisher sends ledger events to the broker.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Categorizer assigns a category to an expense description. On failure it
// still returns a usable label together with the error.
type Categorizer interface {
	Categorize(ctx context.Context, description string) (string, error)
}

// TransactionInput is an income or expense as submitted by the form.
type TransactionInput struct {
	Description string
	Amount      string
	Date        string
}

// GoalInput is a savings goal as submitted by the form.
type GoalInput struct {
	ProductName string
	Price       string
	TargetDate  string
}

// LedgerService records incomes, expenses and savings goals. Every change
// is announced on the broker when one is configured; publishing never
// fails the request.
type LedgerService struct {
	records     *records.Repository
	planner     *goals.Planner
	categorizer Categorizer
	publisher   EventPublisher
}

func NewLedgerService(repo *records.Repository, planner *goals.Planner, categorizer Categorizer, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		records:     repo,
		planner:     planner,
		categorizer: categorizer,
		publisher:   publisher,
	}
}

func (s *LedgerService) AddIncome(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	tx, err := s.parse(userID, core.KindIncome, in)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.save(ctx, store.Incomes, tx)
}

// AddExpense categorizes the description before saving. A categorization
// failure is logged and the expense is stored under the fallback label.
func (s *LedgerService) AddExpense(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	tx, err := s.parse(userID, core.KindExpense, in)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Category = core.Uncategorized
	if s.categorizer != nil {
		category, err := s.categorizer.Categorize(ctx, tx.Description)
		if err != nil {
			slog.WarnContext(ctx, "Expense categorization failed", "user_id", userID, "error", err)
		}
		if category != "" {
			tx.Category = category
		}
	}
	return s.save(ctx, store.Expenses, tx)
}

func (s *LedgerService) parse(userID string, kind core.Kind, in TransactionInput) (core.Transaction, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "amount", Err: err}
	}
	date := s.planner.Today()
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			return core.Transaction{}, &core.ValidationError{Field: "date", Err: err}
		}
	}
	tx := core.Transaction{
		UserID:      userID,
		Kind:        kind,
		Description: strings.TrimSpace(in.Description),
		Amount:      decimal.NewNullDecimal(amount),
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *LedgerService) save(ctx context.Context, c store.Collection, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.records.AddTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", strings.ToLower(string(tx.Kind)), err)
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordCreated(ctx, saved.UserID, string(c), saved.ID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.ActionCreated, c, saved.ID, saved.UserID, records.TransactionSnapshot(saved)))
	return saved, nil
}

// Incomes returns the user's incomes, newest first.
func (s *LedgerService) Incomes(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.records.ListIncomes(ctx, userID, records.ListOptions{Newest: true})
}

// Expenses returns the user's expenses, newest first.
func (s *LedgerService) Expenses(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.records.ListExpenses(ctx, userID, records.ListOptions{Newest: true})
}

func (s *LedgerService) DeleteIncome(ctx context.Context, userID, id string) error {
	return s.deleteTransaction(ctx, userID, core.KindIncome, store.Incomes, id)
}

func (s *LedgerService) DeleteExpense(ctx context.Context, userID, id string) error {
	return s.deleteTransaction(ctx, userID, core.KindExpense, store.Expenses, id)
}

func (s *LedgerService) deleteTransaction(ctx context.Context, userID string, kind core.Kind, c store.Collection, id string) error {
	if err := s.records.DeleteTransaction(ctx, userID, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordDeleted(ctx, userID, string(c), id)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.ActionDeleted, c, id, userID, nil))
	return nil
}

// CreateGoal plans and stores a goal. Nothing is stored when the target
// date is not in a later month.
func (s *LedgerService) CreateGoal(ctx context.Context, userID string, in GoalInput) (core.SavingsGoal, error) {
	price, err := core.ParseAmount(in.Price)
	if err != nil {
		return core.SavingsGoal{}, &core.ValidationError{Field: "price", Err: err}
	}
	var target core.Date
	if strings.TrimSpace(in.TargetDate) != "" {
		if target, err = core.ParseDate(in.TargetDate); err != nil {
			return core.SavingsGoal{}, &core.ValidationError{Field: "target_date", Err: err}
		}
	}

	goal, err := s.planner.Plan(userID, in.ProductName, price, target)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	saved, err := s.records.AddGoal(ctx, goal)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("save goal: %w", err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordCreated(ctx, userID, string(store.SavingsGoals), saved.ID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.ActionCreated, store.SavingsGoals, saved.ID, userID, records.GoalSnapshot(saved)))
	return saved, nil
}

// Goals returns the user's goals, newest first, with their progress.
// Only records dated on or after the oldest goal are read.
func (s *LedgerService) Goals(ctx context.Context, userID string) ([]core.GoalProgress, error) {
	list, err := s.records.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}

	opts := records.ListOptions{Since: goals.EarliestStart(list)}
	var incomes, expenses []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		incomes, err = s.records.ListIncomes(gctx, userID, opts)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.records.ListExpenses(gctx, userID, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	return goals.ComputeAll(list, incomes, expenses), nil
}

func (s *LedgerService) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := s.records.DeleteGoal(ctx, userID, id); err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordDeleted(ctx, userID, string(store.SavingsGoals), id)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.ActionDeleted, store.SavingsGoals, id, userID, nil))
	return nil
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No broker configured, skipping ledger event", "collection", ev.Collection, "id", ev.ID)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"action", ev.Action,
			"collection", ev.Collection,
			"id", ev.ID,
			"error", err)
	}
}
