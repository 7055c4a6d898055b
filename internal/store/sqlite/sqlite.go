// Package sqlite stores documents as JSON bodies in a single SQLite table.
// Filters and ordering are evaluated with json_extract, so field names are
// validated before they are interpolated into SQL.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/store"
)

// Store is a store.Store backed by a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open creates the database file if needed, applies migrations and returns
// a ready store.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "SQLite store ready", "path", dbPath)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) List(ctx context.Context, c store.Collection, q store.Query) iter.Seq2[store.Document, error] {
	if err := q.Validate(); err != nil {
		return store.Fail(err)
	}
	query, args := buildSelect(c, q)
	return func(yield func(store.Document, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("list %s: %w", c, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				yield(nil, fmt.Errorf("scan %s: %w", c, err))
				return
			}
			doc, err := decode(id, body)
			if err != nil {
				yield(nil, fmt.Errorf("decode %s/%s: %w", c, id, err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("list %s: %w", c, err))
		}
	}
}

func buildSelect(c store.Collection, q store.Query) (string, []any) {
	var b strings.Builder
	args := []any{string(c)}
	b.WriteString("SELECT id, body FROM documents WHERE collection = ?")
	for _, f := range q.Filters {
		op := "="
		if f.Op == store.Gte {
			op = ">="
		}
		fmt.Fprintf(&b, " AND %s %s ?", fieldExpr(f.Field), op)
		args = append(args, sqlValue(f.Value))
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s %s, rowid %s", fieldExpr(q.OrderBy), dir, dir)
	} else {
		fmt.Fprintf(&b, " ORDER BY rowid %s", dir)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

func fieldExpr(field string) string {
	return "json_extract(body, '$." + field + "')"
}

// timeLayout is fixed width and always UTC, so stored timestamps compare
// correctly as strings in filters and ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqlValue matches the representation a value has inside a stored body.
func sqlValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(timeLayout)
	}
	return v
}

// encodeTimes replaces top-level time values with their sortable form.
func encodeTimes(doc store.Document) store.Document {
	for k, v := range doc {
		if t, ok := v.(time.Time); ok {
			doc[k] = sqlValue(t)
		}
	}
	return doc
}

func (s *Store) Get(ctx context.Context, c store.Collection, id string) (store.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?", string(c), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return decode(id, body)
}

func (s *Store) Insert(ctx context.Context, c store.Collection, doc store.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, c, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, c store.Collection, id string, doc store.Document) error {
	if id == "" {
		return fmt.Errorf("put %s: empty id", c)
	}
	body := store.Clone(doc)
	if _, ok := body[store.FieldCreatedAt]; !ok {
		body[store.FieldCreatedAt] = s.now().UTC()
	}
	raw, err := json.Marshal(encodeTimes(body))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		string(c), id, string(raw))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, c store.Collection, id string, fields store.Document) error {
	raw, err := json.Marshal(encodeTimes(store.Clone(fields)))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, id, err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET body = json_patch(body, ?) WHERE collection = ? AND id = ?",
		string(raw), string(c), id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c, id, err)
	}
	return requireOne(res)
}

func (s *Store) Delete(ctx context.Context, c store.Collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", string(c), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	return requireOne(res)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// decode keeps JSON numbers as json.Number so amounts never pass through
// float64.
func decode(id, body string) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	doc := store.Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	doc[store.FieldID] = id
	return doc, nil
}
