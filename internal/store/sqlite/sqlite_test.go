package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/store"
	"fintrack/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestStore_NumbersSurviveAsJSONNumbers(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, store.Expenses, store.Document{"user_id": "u1", "amount": 12.5})
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.Expenses, id)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12.5"), doc["amount"])
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), v)
}

func TestBuildSelect(t *testing.T) {
	q := store.Query{Limit: 5}.
		Where(store.FieldUserID, store.Eq, "u1").
		Where(store.FieldDate, store.Gte, "2024-01-01").
		Order(store.FieldDate, true)

	query, args := buildSelect(store.Incomes, q)

	assert.Equal(t,
		"SELECT id, body FROM documents WHERE collection = ?"+
			" AND json_extract(body, '$.user_id') = ?"+
			" AND json_extract(body, '$.date') >= ?"+
			" ORDER BY json_extract(body, '$.date') DESC, rowid DESC LIMIT ?",
		query)
	assert.Equal(t, []any{"incomes", "u1", "2024-01-01", 5}, args)
}

func TestStore_SubSecondCreatedAtOrdersChronologically(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)

	// Inserted out of order so rowid cannot rescue a wrong string comparison.
	for _, at := range []time.Time{base.Add(500 * time.Millisecond), base, base.Add(-time.Second)} {
		_, err := s.Insert(ctx, store.Expenses, store.Document{"user_id": "u1", store.FieldCreatedAt: at})
		require.NoError(t, err)
	}

	q := store.Query{}.Order(store.FieldCreatedAt, false)
	docs, err := store.Collect(s.List(ctx, store.Expenses, q))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2024-03-01T12:00:04.000000000Z", docs[0][store.FieldCreatedAt])
	assert.Equal(t, "2024-03-01T12:00:05.000000000Z", docs[1][store.FieldCreatedAt])
	assert.Equal(t, "2024-03-01T12:00:05.500000000Z", docs[2][store.FieldCreatedAt])

	q = store.Query{}.Where(store.FieldCreatedAt, store.Gte, base)
	docs, err = store.Collect(s.List(ctx, store.Expenses, q))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMigration_PadsLegacyCreatedAt(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for id, at := range map[string]string{
		"a": "2024-03-01T12:00:05Z",
		"b": "2024-03-01T12:00:05.5Z",
		"c": "2024-03-01T12:00:05.123456789Z",
	} {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO documents (collection, id, body) VALUES ('expenses', ?, json_object('created_at', ?))", id, at)
		require.NoError(t, err)
	}

	up, err := migrationsFS.ReadFile("migrations/0003_fixed_width_created_at.up.sql")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, string(up))
	require.NoError(t, err)

	want := map[string]string{
		"a": "2024-03-01T12:00:05.000000000Z",
		"b": "2024-03-01T12:00:05.500000000Z",
		"c": "2024-03-01T12:00:05.123456789Z",
	}
	for id, at := range want {
		doc, err := s.Get(ctx, store.Expenses, id)
		require.NoError(t, err)
		assert.Equal(t, at, doc[store.FieldCreatedAt], id)
	}
}
