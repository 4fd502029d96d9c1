// Package loader is the fetch boundary between reference resolution and the
// document store. Loaders hold no state between calls: no caching, no retries,
// store failures propagate to the caller. StoreLoader wraps them in *FetchError
// to record the operation, collection and query; Unwrap returns the store's
// error value unchanged, so errors.Is and errors.As see it.
package loader

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// DocumentStore is the store boundary consumed by StoreLoader
type DocumentStore interface {
	FindOne(ctx context.Context, q query.Query, database, collection string) (types.Document, bool, error)
	FindMany(ctx context.Context, q query.Query, database, collection string) (iter.Seq2[types.Document, error], error)
}

// Loader fetches referenced documents. Implementations must be safe for
// concurrent use.
type Loader interface {
	// FetchOne returns the first document matching q, false when none does
	FetchOne(ctx context.Context, q query.Query, coll types.ReferenceCollection) (types.Document, bool, error)

	// FetchMany returns a single-pass cursor over the documents matching q
	FetchMany(ctx context.Context, q query.Query, coll types.ReferenceCollection) (*Cursor, error)
}

// FetchError records which fetch failed; it unwraps to the store error
type FetchError struct {
	Op         string
	Collection types.ReferenceCollection
	Query      string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Collection, e.Query, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreLoader is the default Loader over a DocumentStore
type StoreLoader struct {
	store           DocumentStore
	defaultDatabase string
	logger          *slog.Logger
}

// StoreLoaderOption configures a StoreLoader
type StoreLoaderOption func(*StoreLoader)

// WithDefaultDatabase sets the database used when a reference names none
func WithDefaultDatabase(name string) StoreLoaderOption {
	return func(l *StoreLoader) {
		l.defaultDatabase = name
	}
}

// WithLogger sets the logger for fetch diagnostics
func WithLogger(logger *slog.Logger) StoreLoaderOption {
	return func(l *StoreLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewStoreLoader creates a loader reading from store
func NewStoreLoader(store DocumentStore, opts ...StoreLoaderOption) *StoreLoader {
	l := &StoreLoader{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Loader = (*StoreLoader)(nil)

// FetchOne implements Loader.FetchOne
func (l *StoreLoader) FetchOne(ctx context.Context, q query.Query, coll types.ReferenceCollection) (types.Document, bool, error) {
	coll = coll.Resolve(l.defaultDatabase)
	l.logger.Debug("fetch one", "collection", coll.String(), "query", q.String())

	doc, found, err := l.store.FindOne(ctx, q, coll.Database, coll.Collection)
	if err != nil {
		return nil, false, &FetchError{Op: "fetch one", Collection: coll, Query: q.String(), Err: err}
	}
	return doc, found, nil
}

// FetchMany implements Loader.FetchMany
func (l *StoreLoader) FetchMany(ctx context.Context, q query.Query, coll types.ReferenceCollection) (*Cursor, error) {
	coll = coll.Resolve(l.defaultDatabase)
	l.logger.Debug("fetch many", "collection", coll.String(), "query", q.String())

	seq, err := l.store.FindMany(ctx, q, coll.Database, coll.Collection)
	if err != nil {
		return nil, &FetchError{Op: "fetch many", Collection: coll, Query: q.String(), Err: err}
	}
	return NewCursor(func(yield func(types.Document, error) bool) {
		for doc, err := range seq {
			if err != nil {
				yield(nil, &FetchError{Op: "fetch many", Collection: coll, Query: q.String(), Err: err})
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}), nil
}
