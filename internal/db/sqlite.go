package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var _ Store = (*SQLiteStore)(nil)

var errReadAfterWrite = errors.New("transaction reads must happen before writes")

// SQLiteStore implements Store on a single SQLite table of JSON documents.
// Change notifications are delivered in-process, so watchers only see writes made
// through the same SQLiteStore.
type SQLiteStore struct {
	db     *sql.DB
	broker *broker
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises transactions and keeps :memory: databases alive.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := runMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteStore{db: conn, broker: newBroker()}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.broker.close()
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, path string, dst any) error {
	raw, err := getRaw(ctx, s.db, path)
	if err != nil {
		return err
	}
	return decodeJSON(raw, dst)
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	docs, _, err := runQuery(ctx, s.db, q)
	return docs, err
}

func (s *SQLiteStore) Set(ctx context.Context, path string, data any) error {
	if err := setDoc(ctx, s.db, path, data); err != nil {
		return err
	}
	s.broker.publish(path)
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.broker.publish(path)
	return nil
}

// Apply runs all mutations in one SQLite transaction.
func (s *SQLiteStore) Apply(ctx context.Context, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := make([]string, 0, len(muts))
	for _, m := range muts {
		if err := applyMutation(ctx, tx, m); err != nil {
			return err
		}
		touched = append(touched, m.Path)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mutations: %w", err)
	}
	s.broker.publish(touched...)
	return nil
}

func (s *SQLiteStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	t := &sqliteTx{ctx: ctx, tx: sqlTx}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if t.err != nil {
		return t.err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.broker.publish(t.written...)
	return nil
}

func (s *SQLiteStore) WatchDocument(ctx context.Context, path string, fn func(doc *Document)) error {
	sub := s.broker.subscribe(func(changed string) bool { return changed == path })
	defer s.broker.unsubscribe(sub)

	last := "\x00"
	for {
		raw, err := getRaw(ctx, s.db, path)
		switch {
		case errors.Is(err, ErrNotFound):
			if last != "" {
				last = ""
				fn(nil)
			}
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case raw != last:
			last = raw
			_, id := splitPath(path)
			fn(&Document{ID: id, Path: path, decode: jsonDecoder(raw)})
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.ch:
			if !ok {
				return nil
			}
		}
	}
}

func (s *SQLiteStore) WatchQuery(ctx context.Context, q Query, fn func(docs []Document)) error {
	sub := s.broker.subscribe(func(changed string) bool { return matchesQuery(q, changed) })
	defer s.broker.unsubscribe(sub)

	first := true
	var last string
	for {
		docs, fingerprint, err := runQuery(ctx, s.db, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if first || fingerprint != last {
			first = false
			last = fingerprint
			fn(docs)
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.ch:
			if !ok {
				return nil
			}
		}
	}
}

// matchesQuery reports whether a write to docPath can change the results of q.
func matchesQuery(q Query, docPath string) bool {
	parent, _ := splitPath(docPath)
	if q.Group != "" {
		return collectionID(parent) == q.Group
	}
	return parent == q.Collection
}

type sqliteTx struct {
	ctx     context.Context
	tx      *sql.Tx
	written []string
	err     error
}

func (t *sqliteTx) Get(ctx context.Context, path string, dst any) error {
	if len(t.written) > 0 {
		return errReadAfterWrite
	}
	raw, err := getRaw(ctx, t.tx, path)
	if err != nil {
		return err
	}
	return decodeJSON(raw, dst)
}

func (t *sqliteTx) Query(ctx context.Context, q Query) ([]Document, error) {
	if len(t.written) > 0 {
		return nil, errReadAfterWrite
	}
	docs, _, err := runQuery(ctx, t.tx, q)
	return docs, err
}

func (t *sqliteTx) Set(path string, data any) error {
	if err := setDoc(t.ctx, t.tx, path, data); err != nil {
		t.err = err
		return err
	}
	t.written = append(t.written, path)
	return nil
}

func (t *sqliteTx) Delete(path string) error {
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		t.err = fmt.Errorf("failed to delete %s: %w", path, err)
		return t.err
	}
	t.written = append(t.written, path)
	return nil
}

func getRaw(ctx context.Context, q querier, path string) (string, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT data FROM documents WHERE path = ?", path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return raw, nil
}

func setDoc(ctx context.Context, q querier, path string, data any) error {
	if !validDocPath(path) {
		return fmt.Errorf("invalid document path %q", path)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return putRaw(ctx, q, path, string(raw))
}

func putRaw(ctx context.Context, q querier, path, raw string) error {
	parent, _ := splitPath(path)
	_, err := q.ExecContext(ctx,
		`INSERT INTO documents (path, parent, collection_id, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		path, parent, collectionID(parent), raw, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// runQuery returns the matching documents ordered by path, plus a fingerprint of their
// contents used by watchers to skip unchanged result sets.
func runQuery(ctx context.Context, q querier, query Query) ([]Document, string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case query.Group != "":
		rows, err = q.QueryContext(ctx, "SELECT path, data FROM documents WHERE collection_id = ? ORDER BY path", query.Group)
	case query.Collection != "":
		rows, err = q.QueryContext(ctx, "SELECT path, data FROM documents WHERE parent = ? ORDER BY path", query.Collection)
	default:
		return nil, "", errors.New("query needs a collection or a collection group")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var (
		docs []Document
		fp   strings.Builder
	)
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, "", fmt.Errorf("failed to scan document: %w", err)
		}
		ok, err := matchFilters(raw, query.Filters)
		if err != nil {
			return nil, "", fmt.Errorf("failed to filter %s: %w", path, err)
		}
		if !ok {
			continue
		}
		_, id := splitPath(path)
		docs = append(docs, Document{ID: id, Path: path, decode: jsonDecoder(raw)})
		fp.WriteString(path)
		fp.WriteByte(0)
		fp.WriteString(raw)
		fp.WriteByte(0)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, fp.String(), nil
}

func matchFilters(raw string, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return false, err
	}
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, err
		}
		got, _ := lookup(doc, f.Field)
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(got, want) {
				return false, nil
			}
		case OpArrayContains:
			arr, _ := got.([]any)
			found := false
			for _, v := range arr {
				if reflect.DeepEqual(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return true, nil
}

func applyMutation(ctx context.Context, tx *sql.Tx, m Mutation) error {
	if m.Kind == MutationDelete {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", m.Path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", m.Path, err)
		}
		return nil
	}

	doc := map[string]any{}
	raw, err := getRaw(ctx, tx, m.Path)
	switch {
	case errors.Is(err, ErrNotFound):
		if m.Kind != MutationSetField {
			return nil
		}
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("failed to decode %s: %w", m.Path, err)
		}
	}

	switch m.Kind {
	case MutationSetField:
		v, err := normalize(m.Value)
		if err != nil {
			return err
		}
		assign(doc, m.Field, v)
	case MutationDeleteField:
		remove(doc, m.Field)
	case MutationArrayRemove:
		v, err := normalize(m.Value)
		if err != nil {
			return err
		}
		arr, _ := lookup(doc, m.Field)
		items, _ := arr.([]any)
		kept := make([]any, 0, len(items))
		for _, item := range items {
			if !reflect.DeepEqual(item, v) {
				kept = append(kept, item)
			}
		}
		assign(doc, m.Field, kept)
	default:
		return fmt.Errorf("unknown mutation kind %d", m.Kind)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Path, err)
	}
	return putRaw(ctx, tx, m.Path, string(out))
}

// normalize converts v into the shape json.Unmarshal produces for interface values,
// so it compares equal to decoded document fields.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func lookup(doc map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func assign(doc map[string]any, field string, v any) {
	parts := strings.Split(field, ".")
	m := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func remove(doc map[string]any, field string) {
	parts := strings.Split(field, ".")
	m := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func decodeJSON(raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func jsonDecoder(raw string) func(any) error {
	return func(dst any) error { return decodeJSON(raw, dst) }
}
