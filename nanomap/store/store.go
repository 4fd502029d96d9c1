// Package store provides an embedded document store persisted as a single JSON
// file. Documents live in named collections inside named databases and are
// addressed by their "_id" field.
package store

import (
	"context"
	"iter"

	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// DefaultDatabase is used when an operation names no database
const DefaultDatabase = "main"

// Store defines the public interface for the document store.
// All methods are safe for concurrent use.
type Store interface {
	// Insert adds doc to database.collection and returns its id.
	// Documents without an "_id" get a generated one.
	Insert(ctx context.Context, database, collection string, doc types.Document) (string, error)

	// Get returns the document with the given id or types.ErrNotFound
	Get(ctx context.Context, database, collection, id string) (types.Document, error)

	// FindOne returns the first document matching q in insertion order
	FindOne(ctx context.Context, q query.Query, database, collection string) (types.Document, bool, error)

	// FindMany returns a sequence over the documents matching q in insertion order
	FindMany(ctx context.Context, q query.Query, database, collection string) (iter.Seq2[types.Document, error], error)

	// Delete removes the document with the given id or returns types.ErrNotFound
	Delete(ctx context.Context, database, collection, id string) error

	// Collections lists the collection names of a database
	Collections(database string) []string

	// Close releases any resources held by the store
	Close() error
}

// New opens (or prepares to create) the store file at path
func New(path string, opts ...Option) (Store, error) {
	return newJSONFileStore(path, opts...)
}
