package db

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Filter operators understood by every Store.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

// Filter restricts a query on one top-level field.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query selects documents from one collection path, or from every collection with
// the given id when Group is set.
type Query struct {
	Collection string
	Group      string
	Filters    []Filter
}

// Where returns a copy of q with one more filter.
func (q Query) Where(field, op string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Document is a read snapshot of one stored document.
type Document struct {
	ID   string
	Path string

	decode func(dst any) error
}

// DataTo decodes the document into dst.
func (d Document) DataTo(dst any) error {
	return d.decode(dst)
}

// MutationKind enumerates the operations Apply accepts.
type MutationKind int

const (
	MutationDelete      MutationKind = iota // delete the document
	MutationSetField                        // set Field to Value, creating the document if needed
	MutationDeleteField                     // remove Field
	MutationArrayRemove                     // remove Value from the array at Field
)

// Mutation is one write in a bulk Apply. Field may be a dotted path into a map.
type Mutation struct {
	Kind  MutationKind
	Path  string
	Field string
	Value any
}

// DeleteDoc is a delete mutation.
func DeleteDoc(path string) Mutation { return Mutation{Kind: MutationDelete, Path: path} }

// SetField is a field update mutation.
func SetField(path, field string, value any) Mutation {
	return Mutation{Kind: MutationSetField, Path: path, Field: field, Value: value}
}

// DeleteField removes one field from a document.
func DeleteField(path, field string) Mutation {
	return Mutation{Kind: MutationDeleteField, Path: path, Field: field}
}

// ArrayRemove removes every occurrence of value from an array field.
func ArrayRemove(path, field string, value any) Mutation {
	return Mutation{Kind: MutationArrayRemove, Path: path, Field: field, Value: value}
}

// Reader is the read side shared by stores and transactions.
type Reader interface {
	// Get decodes the document at path into dst, or returns ErrNotFound.
	Get(ctx context.Context, path string, dst any) error
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Tx is a read-then-write transaction. All reads must happen before the first write.
type Tx interface {
	Reader
	Set(path string, data any) error
	Delete(path string) error
}

// Store is a hierarchical document store: collections hold documents, documents hold
// subcollections, paths alternate collection and document ids.
type Store interface {
	Reader
	// Set replaces the whole document at path.
	Set(ctx context.Context, path string, data any) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Apply writes many independent mutations. Mutations on missing documents other
	// than SetField are skipped. Several field mutations may target one document; do
	// not mix them with a delete of that document. Apply is not atomic.
	Apply(ctx context.Context, muts []Mutation) error
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WatchDocument calls fn with the current document and again after every change.
	// fn receives nil while the document does not exist. It blocks until ctx is done.
	WatchDocument(ctx context.Context, path string, fn func(doc *Document)) error
	// WatchQuery calls fn with the full result set, initially and after every change.
	// It blocks until ctx is done.
	WatchQuery(ctx context.Context, q Query, fn func(docs []Document)) error
	Close() error
}
