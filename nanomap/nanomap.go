// Package nanomap assembles the object mapping stack from a config.Config:
// the type tag codec, the JSON file store, the reference loader, the resolver
// strategy and the entity reader and writer.
//
// Example:
//
//	registry := typetag.NewTypeRegistry(reflect.TypeOf(User{}))
//	m, err := nanomap.New(cfg, nanomap.WithRegistry(registry))
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	id, err := m.Save(ctx, "users", User{Name: "ann"})
//	manager, err := m.ResolveNamed(ctx, "users", owner, "manager")
package nanomap

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arthur-debert/nanomap/nanomap/config"
	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/nanomap/mapping"
	"github.com/arthur-debert/nanomap/nanomap/reference"
	"github.com/arthur-debert/nanomap/nanomap/store"
	"github.com/arthur-debert/nanomap/nanomap/typetag"
	"github.com/arthur-debert/nanomap/types"
)

// Mapper ties the components together. It is safe for concurrent use.
type Mapper struct {
	cfg      config.Config
	registry *typetag.TypeRegistry
	codec    *typetag.Codec
	store    store.Store
	ownStore bool
	loader   loader.Loader
	resolver reference.Resolver
	delegate reference.Delegate
	reader   *mapping.DocumentReader
	writer   *mapping.DocumentWriter
	logger   *slog.Logger

	// properties holds the declared reference properties keyed by owner, in
	// declaration order
	properties map[string][]*types.Property
}

type options struct {
	registry   *typetag.TypeRegistry
	logger     *slog.Logger
	registerer prometheus.Registerer
	store      store.Store
	storeOpts  []store.Option
}

// Option configures New
type Option func(*options)

// WithRegistry sets the Go types that tags and property targets can name
func WithRegistry(r *typetag.TypeRegistry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the logger handed to every component
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer sets where loader metrics are registered when enabled.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithStore uses an already open store instead of opening cfg.StorePath.
// The caller keeps ownership: Close does not close it.
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithStoreOptions passes options to the JSON file store
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// New builds a Mapper from cfg
func New(cfg config.Config, opts ...Option) (*Mapper, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = typetag.NewTypeRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := cfg.Codec(o.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build type codec: %w", err)
	}

	properties := make(map[string][]*types.Property)
	for _, spec := range cfg.Properties {
		prop, err := spec.Meta(o.registry)
		if err != nil {
			return nil, err
		}
		properties[spec.Owner] = append(properties[spec.Owner], prop)
	}

	m := &Mapper{
		cfg:        cfg,
		registry:   o.registry,
		codec:      codec,
		store:      o.store,
		delegate:   reference.NewLookupDelegate(),
		reader:     mapping.NewDocumentReader(codec),
		writer:     mapping.NewDocumentWriter(codec),
		logger:     o.logger,
		properties: properties,
	}

	if m.store == nil {
		if cfg.StorePath == "" {
			return nil, fmt.Errorf("%w: store_path is required", types.ErrConfiguration)
		}
		storeOpts := append([]store.Option{store.WithLogger(o.logger)}, o.storeOpts...)
		s, err := store.New(cfg.StorePath, storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		m.store = s
		m.ownStore = true
	}

	var l loader.Loader = loader.NewStoreLoader(m.store,
		loader.WithDefaultDatabase(cfg.DefaultDatabase),
		loader.WithLogger(o.logger))
	if cfg.Metrics {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics, err := loader.NewMetrics(reg)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("failed to register loader metrics: %w", err)
		}
		l = loader.Instrument(l, metrics)
	}
	m.loader = l

	if cfg.ResolveReferences {
		m.resolver = reference.NewDefaultResolver(l, reference.WithLogger(o.logger))
	} else {
		m.resolver = reference.NoOpResolver{}
	}

	o.logger.Debug("mapper ready",
		"store", cfg.StorePath,
		"database", cfg.DefaultDatabase,
		"resolve_references", cfg.ResolveReferences,
		"properties", len(cfg.Properties))
	return m, nil
}

// Config returns the configuration the Mapper was built from
func (m *Mapper) Config() config.Config { return m.cfg }

// Registry returns the types tags and property targets resolve against
func (m *Mapper) Registry() *typetag.TypeRegistry { return m.registry }

// Codec returns the type tag codec
func (m *Mapper) Codec() *typetag.Codec { return m.codec }

// Store returns the underlying document store
func (m *Mapper) Store() store.Store { return m.store }

// Loader returns the reference loader, instrumented when metrics are on
func (m *Mapper) Loader() loader.Loader { return m.loader }

// Resolver returns the configured resolver strategy
func (m *Mapper) Resolver() reference.Resolver { return m.resolver }

// Reader returns the entity reader used for resolution and Get
func (m *Mapper) Reader() *mapping.DocumentReader { return m.reader }

// Writer returns the document writer used by Save
func (m *Mapper) Writer() *mapping.DocumentWriter { return m.writer }

// Save writes v into collection of the default database and returns its id
func (m *Mapper) Save(ctx context.Context, collection string, v interface{}) (string, error) {
	doc, err := m.writer.Write(v)
	if err != nil {
		return "", err
	}
	return m.store.Insert(ctx, m.cfg.DefaultDatabase, collection, doc)
}

// Get reads the document id of collection into target; a nil target returns
// the raw document
func (m *Mapper) Get(ctx context.Context, collection, id string, target reflect.Type) (interface{}, error) {
	doc, err := m.store.Get(ctx, m.cfg.DefaultDatabase, collection, id)
	if err != nil {
		return nil, err
	}
	return m.reader.Read(doc, target)
}

// Get reads the document id of collection as a T
func Get[T any](ctx context.Context, m *Mapper, collection, id string) (T, error) {
	var zero T
	v, err := m.Get(ctx, collection, id, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: document %q read as %T", types.ErrInvalidArgument, id, v)
	}
	return out, nil
}

// Property returns the declared reference property name of owner
func (m *Mapper) Property(owner, name string) (types.PropertyMeta, error) {
	for _, prop := range m.properties[owner] {
		if prop.Name() == name {
			return prop, nil
		}
	}
	return nil, fmt.Errorf("%w: no reference property %q declared for %q", types.ErrNotFound, name, owner)
}

// Resolve resolves prop of owner with the configured resolver strategy
func (m *Mapper) Resolve(ctx context.Context, owner types.Document, prop types.PropertyMeta) (interface{}, error) {
	return m.resolver.ResolveReference(ctx, prop, owner, m.delegate, m.reader)
}

// ResolveNamed resolves a declared property of owner
func (m *Mapper) ResolveNamed(ctx context.Context, ownerType string, owner types.Document, name string) (interface{}, error) {
	prop, err := m.Property(ownerType, name)
	if err != nil {
		return nil, err
	}
	return m.Resolve(ctx, owner, prop)
}

// ResolveAll resolves every property declared for ownerType, stopping at the
// first failure
func (m *Mapper) ResolveAll(ctx context.Context, ownerType string, owner types.Document) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(m.properties[ownerType]))
	for _, prop := range m.properties[ownerType] {
		v, err := m.Resolve(ctx, owner, prop)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s.%s: %w", ownerType, prop.Name(), err)
		}
		out[prop.Name()] = v
	}
	return out, nil
}

// Close closes the store when the Mapper opened it
func (m *Mapper) Close() error {
	if m.ownStore && m.store != nil {
		return m.store.Close()
	}
	return nil
}
