// Package store defines the document store the application persists into.
//
// A store holds schemaless documents grouped in named collections. Backends
// (memory, sqlite, mongo) implement Store; the records package layers typed,
// user-scoped access on top. Dates are stored as YYYY-MM-DD strings so that
// lexical range comparison matches calendar order.
package store

import (
	"context"
	"errors"
	"iter"
)

// Collection names.
const (
	Incomes         Collection = "incomes"
	Expenses        Collection = "expenses"
	SavingsGoals    Collection = "savings_goals"
	Users           Collection = "users"
	Credentials     Collection = "credentials"
	AdvisorMessages Collection = "advisor_messages"
)

// Well-known field names shared by every backend.
const (
	FieldID        = "id"
	FieldUserID    = "user_id"
	FieldDate      = "date"
	FieldCreatedAt = "created_at"
)

const (
	Eq  Op = "eq"
	Gte Op = "gte"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidQuery = errors.New("invalid query")
)

type (
	Collection string

	// Document is a flat record. Values are strings, numbers, booleans or
	// time.Time. The id is never part of the stored body; backends add it
	// under FieldID when documents are read back.
	Document map[string]any

	Op string

	Filter struct {
		Field string
		Op    Op
		Value any
	}

	// Query selects documents within one collection. An empty OrderBy
	// returns documents in insertion order.
	Query struct {
		Filters []Filter
		OrderBy string
		Desc    bool
		Limit   int
	}

	// Store is the document persistence port.
	Store interface {
		// List lazily yields matching documents. Iteration stops at the
		// first error, which is yielded with a nil document.
		List(ctx context.Context, c Collection, q Query) iter.Seq2[Document, error]
		Get(ctx context.Context, c Collection, id string) (Document, error)
		// Insert stores doc under a new id and returns it. created_at is
		// set to the current time when absent.
		Insert(ctx context.Context, c Collection, doc Document) (string, error)
		// Put creates or replaces the document with the given id.
		Put(ctx context.Context, c Collection, id string, doc Document) error
		// Update merges fields into an existing document.
		Update(ctx context.Context, c Collection, id string, fields Document) error
		Delete(ctx context.Context, c Collection, id string) error
		Ping(ctx context.Context) error
		Close() error
	}
)

// Where returns a copy of q with one more filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Order returns a copy of q sorted by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Validate rejects field names and operators a backend cannot execute
// safely.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !ValidField(f.Field) {
			return ErrInvalidQuery
		}
		if f.Op != Eq && f.Op != Gte {
			return ErrInvalidQuery
		}
	}
	if q.OrderBy != "" && !ValidField(q.OrderBy) {
		return ErrInvalidQuery
	}
	if q.Limit < 0 {
		return ErrInvalidQuery
	}
	return nil
}

// ValidField reports whether name is a plain lower_snake_case identifier.
func ValidField(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Collect drains a List sequence into a slice.
func Collect(seq iter.Seq2[Document, error]) ([]Document, error) {
	var docs []Document
	for doc, err := range seq {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Clone returns a shallow copy of doc without the id field.
func Clone(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	return out
}

// Copy returns a shallow copy of doc including its id.
func Copy(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Fail returns a sequence that yields err once.
func Fail(err error) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		yield(nil, err)
	}
}
