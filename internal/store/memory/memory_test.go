package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/store"
	"fintrack/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestStore_StampsCreatedAtOnce(t *testing.T) {
	at := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return at })
	ctx := context.Background()

	id, err := s.Insert(ctx, store.Incomes, store.Document{"user_id": "u1"})
	require.NoError(t, err)
	doc, err := s.Get(ctx, store.Incomes, id)
	require.NoError(t, err)
	assert.Equal(t, at, doc[store.FieldCreatedAt])

	explicit := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	id, err = s.Insert(ctx, store.Incomes, store.Document{"user_id": "u1", "created_at": explicit})
	require.NoError(t, err)
	doc, err = s.Get(ctx, store.Incomes, id)
	require.NoError(t, err)
	assert.Equal(t, explicit, doc[store.FieldCreatedAt])
}

func TestStore_ReturnedDocumentsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.Insert(ctx, store.Incomes, store.Document{"user_id": "u1", "description": "a"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, store.Incomes, id)
	require.NoError(t, err)
	doc["description"] = "mutated"

	again, err := s.Get(ctx, store.Incomes, id)
	require.NoError(t, err)
	assert.Equal(t, "a", again["description"])
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, store.Incomes, store.Document{})
	assert.ErrorIs(t, err, context.Canceled)
}
