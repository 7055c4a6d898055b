// Package mongo implements store.Store on MongoDB. Each collection maps to
// a MongoDB collection of the same name; document ids are stored as string
// _id values.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"fintrack/internal/store"
)

const connectTimeout = 10 * time.Second

// Store is a store.Store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and verifies the connection before returning.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	slog.InfoContext(ctx, "MongoDB store ready", "database", database)
	return &Store{client: client, db: client.Database(database), now: time.Now}, nil
}

func (s *Store) List(ctx context.Context, c store.Collection, q store.Query) iter.Seq2[store.Document, error] {
	if err := q.Validate(); err != nil {
		return store.Fail(err)
	}
	return func(yield func(store.Document, error) bool) {
		cursor, err := s.db.Collection(string(c)).Find(ctx, buildFilter(q.Filters), findOptions(q))
		if err != nil {
			yield(nil, fmt.Errorf("list %s: %w", c, err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var raw bson.M
			if err := cursor.Decode(&raw); err != nil {
				yield(nil, fmt.Errorf("decode %s: %w", c, err))
				return
			}
			if !yield(fromBSON(raw), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("cursor %s: %w", c, err))
		}
	}
}

// buildFilter groups operators per field so that equality and range
// predicates on the same field combine instead of overwriting each other.
func buildFilter(filters []store.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		op := "$eq"
		if f.Op == store.Gte {
			op = "$gte"
		}
		field := f.Field
		if field == store.FieldID {
			field = "_id"
		}
		cond, _ := out[field].(bson.M)
		if cond == nil {
			cond = bson.M{}
		}
		cond[op] = f.Value
		out[field] = cond
	}
	return out
}

func findOptions(q store.Query) *options.FindOptionsBuilder {
	dir := 1
	if q.Desc {
		dir = -1
	}
	sort := bson.D{}
	if q.OrderBy != "" {
		sort = append(sort, bson.E{Key: q.OrderBy, Value: dir})
	}
	sort = append(sort, bson.E{Key: store.FieldCreatedAt, Value: dir}, bson.E{Key: "_id", Value: dir})

	opts := options.Find().SetSort(sort)
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func (s *Store) Get(ctx context.Context, c store.Collection, id string) (store.Document, error) {
	var raw bson.M
	err := s.db.Collection(string(c)).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Insert(ctx context.Context, c store.Collection, doc store.Document) (string, error) {
	id := uuid.NewString()
	body := s.body(doc)
	body["_id"] = id
	if _, err := s.db.Collection(string(c)).InsertOne(ctx, body); err != nil {
		return "", fmt.Errorf("insert %s: %w", c, err)
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, c store.Collection, id string, doc store.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: empty id", c)
	}
	_, err := s.db.Collection(string(c)).ReplaceOne(ctx,
		bson.M{"_id": id}, s.body(doc), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, c store.Collection, id string, fields store.Document) error {
	set := bson.M(store.Clone(fields))
	if len(set) == 0 {
		_, err := s.Get(ctx, c, id)
		return err
	}
	res, err := s.db.Collection(string(c)).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c, id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c store.Collection, id string) error {
	res, err := s.db.Collection(string(c)).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) body(doc store.Document) bson.M {
	body := bson.M(store.Clone(doc))
	if _, ok := body[store.FieldCreatedAt]; !ok {
		body[store.FieldCreatedAt] = s.now().UTC()
	}
	return body
}

// fromBSON maps driver types back to the plain values store.Document
// promises.
func fromBSON(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case bson.DateTime:
			v = x.Time().UTC()
		case int32:
			v = int64(x)
		}
		if k == "_id" {
			k = store.FieldID
		}
		doc[k] = v
	}
	return doc
}
