// Package records gives typed, user-scoped access to the document store.
// Every read filters by the owning user and every delete checks ownership,
// so one user's records are never visible to another.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// ErrNotOwner is returned when a record exists but belongs to someone else.
// It matches store.ErrNotFound so callers cannot tell the two apart.
var ErrNotOwner = fmt.Errorf("%w: owned by another user", store.ErrNotFound)

const storeService = "record store"

// ListOptions narrows transaction listings.
type ListOptions struct {
	// Since keeps records dated on or after this day. Zero means no bound.
	Since core.Date
	// Newest sorts by date descending instead of ascending.
	Newest bool
}

type Repository struct {
	store store.Store
	now   func() time.Time

	mu      sync.Mutex
	lastPos int64
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s, now: time.Now}
}

// Store exposes the underlying document store for health checks.
func (r *Repository) Store() store.Store {
	return r.store
}

func (r *Repository) ListIncomes(ctx context.Context, userID string, opts ListOptions) ([]core.Transaction, error) {
	return r.listTransactions(ctx, store.Incomes, core.KindIncome, userID, opts)
}

func (r *Repository) ListExpenses(ctx context.Context, userID string, opts ListOptions) ([]core.Transaction, error) {
	return r.listTransactions(ctx, store.Expenses, core.KindExpense, userID, opts)
}

func (r *Repository) listTransactions(ctx context.Context, c store.Collection, kind core.Kind, userID string, opts ListOptions) ([]core.Transaction, error) {
	q, err := ownedBy(userID)
	if err != nil {
		return nil, err
	}
	if !opts.Since.IsZero() {
		q = q.Where(store.FieldDate, store.Gte, opts.Since.String())
	}
	q = q.Order(store.FieldDate, opts.Newest)

	var out []core.Transaction
	for doc, err := range r.store.List(ctx, c, q) {
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, decodeTransaction(kind, doc))
	}
	return out, nil
}

// AddTransaction persists tx and returns it with its new id.
func (r *Repository) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	c, err := collectionFor(tx.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(tx.UserID) == "" {
		return core.Transaction{}, &core.ValidationError{Field: "user", Err: core.ErrMissingUser}
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.now()
	}
	id, err := r.store.Insert(ctx, c, encodeTransaction(tx))
	if err != nil {
		return core.Transaction{}, wrap(err)
	}
	tx.ID = id
	return tx, nil
}

// DeleteTransaction removes one of the user's incomes or expenses.
func (r *Repository) DeleteTransaction(ctx context.Context, userID string, kind core.Kind, id string) error {
	c, err := collectionFor(kind)
	if err != nil {
		return err
	}
	return r.deleteOwned(ctx, c, userID, id)
}

// ListGoals returns the user's goals, newest first.
func (r *Repository) ListGoals(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	q, err := ownedBy(userID)
	if err != nil {
		return nil, err
	}
	q = q.Order(store.FieldCreatedAt, true)

	var out []core.SavingsGoal
	for doc, err := range r.store.List(ctx, store.SavingsGoals, q) {
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, decodeGoal(doc))
	}
	return out, nil
}

func (r *Repository) AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if strings.TrimSpace(g.UserID) == "" {
		return core.SavingsGoal{}, &core.ValidationError{Field: "user", Err: core.ErrMissingUser}
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now()
	}
	if g.CreatedOn.IsZero() {
		g.CreatedOn = core.DateOf(g.CreatedAt)
	}
	id, err := r.store.Insert(ctx, store.SavingsGoals, encodeGoal(g))
	if err != nil {
		return core.SavingsGoal{}, wrap(err)
	}
	g.ID = id
	return g, nil
}

func (r *Repository) DeleteGoal(ctx context.Context, userID, id string) error {
	return r.deleteOwned(ctx, store.SavingsGoals, userID, id)
}

// GetProfile returns the stored profile. store.ErrNotFound means the user
// never completed signup.
func (r *Repository) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	doc, err := r.store.Get(ctx, store.Users, userID)
	if err != nil {
		return core.UserProfile{}, wrap(err)
	}
	return decodeProfile(userID, doc), nil
}

// PutProfile creates or replaces the profile keyed by p.UserID.
func (r *Repository) PutProfile(ctx context.Context, p core.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return wrap(r.store.Put(ctx, store.Users, p.UserID, encodeProfile(p)))
}

// UpdateSettings changes the settings-form fields and leaves the rest of
// the profile untouched.
func (r *Repository) UpdateSettings(ctx context.Context, userID, name string, currency core.Currency, theme core.Theme) error {
	p := core.UserProfile{UserID: userID, Name: strings.TrimSpace(name), Currency: currency, Theme: theme}
	if err := p.Validate(); err != nil {
		return err
	}
	return wrap(r.store.Update(ctx, store.Users, userID, store.Document{
		fName:     p.Name,
		fCurrency: string(currency),
		fTheme:    string(theme),
	}))
}

// AppendMessages stores chat turns in the given order.
func (r *Repository) AppendMessages(ctx context.Context, userID string, msgs ...core.ChatMessage) error {
	if strings.TrimSpace(userID) == "" {
		return &core.ValidationError{Field: "user", Err: core.ErrMissingUser}
	}
	for _, m := range msgs {
		doc := store.Document{
			store.FieldUserID: userID,
			fRole:             m.Role,
			fContent:          m.Content,
			fPosition:         r.nextPosition(),
		}
		if _, err := r.store.Insert(ctx, store.AdvisorMessages, doc); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// ListMessages returns up to limit of the most recent turns, oldest first.
// limit <= 0 returns the whole history.
func (r *Repository) ListMessages(ctx context.Context, userID string, limit int) ([]core.ChatMessage, error) {
	q, err := ownedBy(userID)
	if err != nil {
		return nil, err
	}
	q = q.Order(fPosition, true)
	q.Limit = limit

	var out []core.ChatMessage
	for doc, err := range r.store.List(ctx, store.AdvisorMessages, q) {
		if err != nil {
			return nil, wrap(err)
		}
		out = append(out, decodeMessage(doc))
	}
	// Fetched newest first so the limit keeps the latest turns.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *Repository) ClearMessages(ctx context.Context, userID string) error {
	q, err := ownedBy(userID)
	if err != nil {
		return err
	}
	docs, err := store.Collect(r.store.List(ctx, store.AdvisorMessages, q))
	if err != nil {
		return wrap(err)
	}
	for _, doc := range docs {
		id, _ := doc[store.FieldID].(string)
		if err := r.store.Delete(ctx, store.AdvisorMessages, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return wrap(err)
		}
	}
	return nil
}

// nextPosition returns a strictly increasing sequence number so turns
// written within the same clock tick keep their order.
func (r *Repository) nextPosition() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := r.now().UnixNano()
	if pos <= r.lastPos {
		pos = r.lastPos + 1
	}
	r.lastPos = pos
	return pos
}

func (r *Repository) deleteOwned(ctx context.Context, c store.Collection, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return &core.ValidationError{Field: "user", Err: core.ErrMissingUser}
	}
	doc, err := r.store.Get(ctx, c, id)
	if err != nil {
		return wrap(err)
	}
	if owner, _ := doc[store.FieldUserID].(string); owner != userID {
		return ErrNotOwner
	}
	return wrap(r.store.Delete(ctx, c, id))
}

func ownedBy(userID string) (store.Query, error) {
	if strings.TrimSpace(userID) == "" {
		return store.Query{}, &core.ValidationError{Field: "user", Err: core.ErrMissingUser}
	}
	return store.Query{}.Where(store.FieldUserID, store.Eq, userID), nil
}

func collectionFor(kind core.Kind) (store.Collection, error) {
	switch kind {
	case core.KindIncome:
		return store.Incomes, nil
	case core.KindExpense:
		return store.Expenses, nil
	}
	return "", &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
}

// wrap marks backend failures as external so the presentation layer can
// degrade; not-found and query errors pass through unchanged.
func wrap(err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidQuery) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return core.External(storeService, err)
}
