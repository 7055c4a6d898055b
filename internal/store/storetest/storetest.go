// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/store"
)

// Run exercises a fresh, empty store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("insert and get", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, store.Expenses, store.Document{
			"user_id":     "u1",
			"description": "Coffee",
			"amount":      "3.50",
			"date":        "2024-01-05",
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Get(ctx, store.Expenses, id)
		require.NoError(t, err)
		assert.Equal(t, id, doc[store.FieldID])
		assert.Equal(t, "Coffee", doc["description"])
		assert.Equal(t, "3.50", doc["amount"])
		assert.Contains(t, doc, store.FieldCreatedAt)

		_, err = s.Get(ctx, store.Incomes, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list filters by owner and date", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		seed(t, s, []store.Document{
			{"user_id": "u1", "description": "a", "date": "2024-01-05"},
			{"user_id": "u1", "description": "b", "date": "2024-03-01"},
			{"user_id": "u2", "description": "c", "date": "2024-03-02"},
			{"user_id": "u1", "description": "d", "date": "2024-02-10"},
		})

		q := store.Query{}.
			Where(store.FieldUserID, store.Eq, "u1").
			Where(store.FieldDate, store.Gte, "2024-02-10").
			Order(store.FieldDate, false)
		docs, err := store.Collect(s.List(ctx, store.Incomes, q))
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "b"}, descriptions(docs))
	})

	t.Run("list orders descending with limit", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		seed(t, s, []store.Document{
			{"user_id": "u1", "description": "old", "date": "2023-12-31"},
			{"user_id": "u1", "description": "new", "date": "2024-06-01"},
			{"user_id": "u1", "description": "mid", "date": "2024-01-15"},
		})

		q := store.Query{Limit: 2}.Where(store.FieldUserID, store.Eq, "u1").Order(store.FieldDate, true)
		docs, err := store.Collect(s.List(ctx, store.Incomes, q))
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "mid"}, descriptions(docs))
	})

	t.Run("list stops when the consumer stops", func(t *testing.T) {
		s := open(t)
		seed(t, s, []store.Document{
			{"user_id": "u1", "description": "a", "date": "2024-01-01"},
			{"user_id": "u1", "description": "b", "date": "2024-01-02"},
		})
		n := 0
		for _, err := range s.List(context.Background(), store.Incomes, store.Query{}) {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("list rejects unsafe field names", func(t *testing.T) {
		s := open(t)
		q := store.Query{}.Where("date) OR 1=1 --", store.Eq, "x")
		_, err := store.Collect(s.List(context.Background(), store.Incomes, q))
		assert.ErrorIs(t, err, store.ErrInvalidQuery)
	})

	t.Run("put upserts and update merges", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, store.Users, "u1", store.Document{"email": "a@b.c", "theme": "Light"}))
		require.NoError(t, s.Update(ctx, store.Users, "u1", store.Document{"theme": "Dark", "name": "Ada"}))

		doc, err := s.Get(ctx, store.Users, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", doc["email"])
		assert.Equal(t, "Dark", doc["theme"])
		assert.Equal(t, "Ada", doc["name"])

		require.NoError(t, s.Put(ctx, store.Users, "u1", store.Document{"email": "x@y.z"}))
		doc, err = s.Get(ctx, store.Users, "u1")
		require.NoError(t, err)
		assert.Equal(t, "x@y.z", doc["email"])
		assert.NotContains(t, doc, "theme")

		assert.ErrorIs(t, s.Update(ctx, store.Users, "missing", store.Document{"a": "b"}), store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, store.SavingsGoals, store.Document{"user_id": "u1", "product_name": "Bike"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, store.SavingsGoals, id))

		_, err = s.Get(ctx, store.SavingsGoals, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, store.SavingsGoals, id), store.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(context.Background()))
	})
}

func seed(t *testing.T, s store.Store, docs []store.Document) {
	t.Helper()
	for _, d := range docs {
		_, err := s.Insert(context.Background(), store.Incomes, d)
		require.NoError(t, err)
	}
}

func descriptions(docs []store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		s, _ := d["description"].(string)
		out = append(out, s)
	}
	return out
}
