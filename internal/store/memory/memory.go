// Package memory provides an in-process document store. It backs local
// development and tests; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/store"
)

type entry struct {
	doc store.Document
	seq uint64
}

// Store is a thread-safe map-backed implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	data map[store.Collection]map[string]entry
	seq  uint64
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: make(map[store.Collection]map[string]entry),
		now:  time.Now,
	}
}

// WithClock replaces the clock used for created_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) List(ctx context.Context, c store.Collection, q store.Query) iter.Seq2[store.Document, error] {
	if err := q.Validate(); err != nil {
		return store.Fail(err)
	}
	return func(yield func(store.Document, error) bool) {
		for _, doc := range s.snapshot(c, q) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// snapshot copies the matching documents so iteration never holds the lock.
func (s *Store) snapshot(c store.Collection, q store.Query) []store.Document {
	s.mu.RLock()
	matched := make([]entry, 0)
	for _, e := range s.data[c] {
		if matches(e.doc, q.Filters) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b entry) int {
		c := 0
		if q.OrderBy != "" {
			c = compare(a.doc[q.OrderBy], b.doc[q.OrderBy])
		}
		if c == 0 {
			c = cmp.Compare(a.seq, b.seq)
		}
		if q.Desc {
			return -c
		}
		return c
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]store.Document, len(matched))
	for i, e := range matched {
		out[i] = store.Copy(e.doc)
	}
	return out
}

func (s *Store) Get(ctx context.Context, c store.Collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[c][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Copy(e.doc), nil
}

func (s *Store) Insert(ctx context.Context, c store.Collection, doc store.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, c, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, c store.Collection, id string, doc store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("put %s: empty id", c)
	}
	body := store.Clone(doc)
	if _, ok := body[store.FieldCreatedAt]; !ok {
		body[store.FieldCreatedAt] = s.now().UTC()
	}
	body[store.FieldID] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[c] == nil {
		s.data[c] = make(map[string]entry)
	}
	s.seq++
	s.data[c][id] = entry{doc: body, seq: s.seq}
	return nil
}

func (s *Store) Update(ctx context.Context, c store.Collection, id string, fields store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[c][id]
	if !ok {
		return store.ErrNotFound
	}
	merged := store.Clone(e.doc)
	for k, v := range store.Clone(fields) {
		merged[k] = v
	}
	merged[store.FieldID] = id
	e.doc = merged
	s.data[c][id] = e
	return nil
}

func (s *Store) Delete(ctx context.Context, c store.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[c][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.data[c], id)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func matches(doc store.Document, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		c, comparable := compareStrict(v, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case store.Eq:
			if c != 0 {
				return false
			}
		case store.Gte:
			if c < 0 {
				return false
			}
		}
	}
	return true
}

// compare orders two field values for sorting. Missing values sort first;
// values of different kinds fall back to their string form.
func compare(a, b any) int {
	if c, ok := compareStrict(a, b); ok {
		return c
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// compareStrict compares values of the same kind. Integer and float values
// are compared numerically.
func compareStrict(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolInt(x), boolInt(y)), true
		}
	default:
		fx, okx := number(a)
		fy, oky := number(b)
		if okx && oky {
			return cmp.Compare(fx, fy), true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
