package reference

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/nanomap/mapping"
	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// Resolver produces the value of a reference property of owner
type Resolver interface {
	ResolveReference(ctx context.Context, prop types.PropertyMeta, owner types.Document,
		delegate Delegate, reader mapping.EntityReader) (interface{}, error)

	// Fetch runs q through the cardinality-aware lookup for prop
	Fetch(ctx context.Context, prop types.PropertyMeta, q query.Query) (*loader.Cursor, error)
}

// DefaultResolver resolves eager properties immediately and lazy ones into a
// *LazyReference
type DefaultResolver struct {
	loader loader.Loader
	logger *slog.Logger
}

// ResolverOption configures a DefaultResolver
type ResolverOption func(*DefaultResolver)

// WithLogger sets the logger for resolution diagnostics
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *DefaultResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDefaultResolver creates a resolver fetching through l
func NewDefaultResolver(l loader.Loader, opts ...ResolverOption) *DefaultResolver {
	r := &DefaultResolver{loader: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Resolver = (*DefaultResolver)(nil)

// ResolveReference implements Resolver.ResolveReference
func (r *DefaultResolver) ResolveReference(ctx context.Context, prop types.PropertyMeta, owner types.Document,
	delegate Delegate, reader mapping.EntityReader) (interface{}, error) {
	desc := types.DescriptorFor(owner, prop.Name())
	lookup := r.lookupFor(prop)

	if prop.IsLazy() {
		r.logger.Debug("deferring reference", "property", prop.Name(), "collection", prop.Collection().String())
		payload := desc.Payload()
		identity := types.ReferenceLiteral{
			Database:   prop.Collection().Database,
			Collection: prop.Collection().Collection,
			Payload:    payload.Raw(),
		}
		return NewLazyReference(func(ctx context.Context) (interface{}, error) {
			return delegate.ReadReference(ctx, prop, desc, lookup, reader)
		}, identity, !payload.IsAbsent()), nil
	}

	r.logger.Debug("resolving reference", "property", prop.Name(), "collection", prop.Collection().String())
	return delegate.ReadReference(ctx, prop, desc, lookup, reader)
}

// Fetch implements Resolver.Fetch
func (r *DefaultResolver) Fetch(ctx context.Context, prop types.PropertyMeta, q query.Query) (*loader.Cursor, error) {
	return r.lookupFor(prop)(ctx, q, prop.Collection())
}

// lookupFor routes collection and map properties to FetchMany and singular
// ones to a single FetchOne presented as a cursor of zero or one documents
func (r *DefaultResolver) lookupFor(prop types.PropertyMeta) LookupFunc {
	if prop.IsCollectionLike() || prop.IsMap() {
		return r.loader.FetchMany
	}
	return func(ctx context.Context, q query.Query, coll types.ReferenceCollection) (*loader.Cursor, error) {
		doc, found, err := r.loader.FetchOne(ctx, q, coll)
		if err != nil {
			return nil, err
		}
		if !found {
			return loader.Empty(), nil
		}
		return loader.Of(doc), nil
	}
}

// NoOpResolver leaves every reference unresolved
type NoOpResolver struct{}

var _ Resolver = NoOpResolver{}

// ResolveReference always returns nil
func (NoOpResolver) ResolveReference(context.Context, types.PropertyMeta, types.Document, Delegate, mapping.EntityReader) (interface{}, error) {
	return nil, nil
}

// Fetch always fails with types.ErrUnsupported
func (NoOpResolver) Fetch(_ context.Context, prop types.PropertyMeta, _ query.Query) (*loader.Cursor, error) {
	return nil, fmt.Errorf("%w: reference resolution is disabled (property %q)", types.ErrUnsupported, prop.Name())
}
