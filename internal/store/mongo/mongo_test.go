package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"fintrack/internal/store"
)

func TestBuildFilter_CombinesOperatorsPerField(t *testing.T) {
	q := store.Query{}.
		Where(store.FieldUserID, store.Eq, "u1").
		Where(store.FieldDate, store.Gte, "2024-01-01").
		Where(store.FieldID, store.Eq, "abc")

	got := buildFilter(q.Filters)

	assert.Equal(t, bson.M{
		"user_id": bson.M{"$eq": "u1"},
		"date":    bson.M{"$gte": "2024-01-01"},
		"_id":     bson.M{"$eq": "abc"},
	}, got)
}

func TestFromBSON_NormalizesDriverTypes(t *testing.T) {
	at := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	got := fromBSON(bson.M{
		"_id":        "x1",
		"created_at": bson.NewDateTimeFromTime(at),
		"count":      int32(3),
		"amount":     "9.99",
	})

	assert.Equal(t, store.Document{
		"id":         "x1",
		"created_at": at,
		"count":      int64(3),
		"amount":     "9.99",
	}, got)
}
