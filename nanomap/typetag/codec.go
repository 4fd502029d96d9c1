// Package typetag records runtime type identity in documents.
//
// A Codec writes a string tag for a value's concrete type under a reserved
// document key (default "_class") and reads it back, so interfaces, subtype
// hierarchies and mixed lists can be reconstructed on read. Tags come from a
// Mapper: an explicit table (ConfigurableMapper), qualified Go type names
// (SimpleMapper), or a table with a name-based fallback.
package typetag

import (
	"reflect"

	"github.com/arthur-debert/nanomap/types"
)

// SequenceType is reported for sequence-shaped documents, which never carry a tag
var SequenceType = reflect.TypeOf([]interface{}(nil))

// Codec reads and writes type tags. It is immutable after construction.
type Codec struct {
	typeKey    string
	hasTypeKey bool
	mapper     Mapper
}

type codecSettings struct {
	typeKey    string
	hasTypeKey bool
	mapper     Mapper
	table      map[reflect.Type]string
	registry   *TypeRegistry
	strict     bool
}

// Option configures a Codec
type Option func(*codecSettings)

// WithTypeKey sets the document key carrying the tag
func WithTypeKey(key string) Option {
	return func(s *codecSettings) {
		s.typeKey = key
		s.hasTypeKey = key != ""
	}
}

// WithoutTypeKey disables type metadata entirely
func WithoutTypeKey() Option {
	return func(s *codecSettings) {
		s.typeKey = ""
		s.hasTypeKey = false
	}
}

// WithMapper uses m as-is, ignoring WithTable, WithRegistry and WithStrict
func WithMapper(m Mapper) Option {
	return func(s *codecSettings) {
		s.mapper = m
	}
}

// WithTable maps types through an explicit table
func WithTable(table map[reflect.Type]string) Option {
	return func(s *codecSettings) {
		s.table = table
	}
}

// WithRegistry sets the types the name-based fallback can resolve
func WithRegistry(r *TypeRegistry) Option {
	return func(s *codecSettings) {
		s.registry = r
	}
}

// WithStrict disables the name-based fallback for unmapped types and tags
func WithStrict(strict bool) Option {
	return func(s *codecSettings) {
		s.strict = strict
	}
}

// NewCodec builds a codec. Without options it writes qualified type names
// under "_class".
func NewCodec(opts ...Option) (*Codec, error) {
	s := codecSettings{
		typeKey:    types.DefaultTypeKey,
		hasTypeKey: true,
	}
	for _, opt := range opts {
		opt(&s)
	}

	mapper := s.mapper
	if mapper == nil {
		var fallback Mapper
		if !s.strict {
			fallback = NewSimpleMapper(s.registry)
		}
		switch {
		case s.table != nil:
			var copts []ConfigurableOption
			if fallback != nil {
				copts = append(copts, WithFallback(fallback))
			}
			cm, err := NewConfigurableMapper(s.table, copts...)
			if err != nil {
				return nil, err
			}
			mapper = cm
		case fallback != nil:
			mapper = fallback
		default:
			// strict with no table: nothing is ever mapped
			cm, _ := NewConfigurableMapper(nil)
			mapper = cm
		}
	}

	return &Codec{
		typeKey:    s.typeKey,
		hasTypeKey: s.hasTypeKey,
		mapper:     mapper,
	}, nil
}

// MustCodec is NewCodec for static setups; it panics on configuration errors
func MustCodec(opts ...Option) *Codec {
	c, err := NewCodec(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// TypeKey returns the document key carrying tags, false when disabled
func (c *Codec) TypeKey() (string, bool) {
	return c.typeKey, c.hasTypeKey
}

// IsTypeKey reports whether key is the codec's type key
func (c *Codec) IsTypeKey(key string) bool {
	return c.hasTypeKey && key == c.typeKey
}

// TagFor returns the tag for t
func (c *Codec) TagFor(t reflect.Type) (string, bool) {
	if !c.hasTypeKey || t == nil {
		return "", false
	}
	return c.mapper.TagFor(t)
}

// TypeFor returns the type for tag
func (c *Codec) TypeFor(tag string) (reflect.Type, bool) {
	if !c.hasTypeKey {
		return nil, false
	}
	return c.mapper.TypeFor(tag)
}

// WriteType stores the tag for t in doc. It reports whether a tag was written.
func (c *Codec) WriteType(doc types.Document, t reflect.Type) bool {
	if doc == nil {
		return false
	}
	tag, ok := c.TagFor(t)
	if !ok {
		return false
	}
	doc[c.typeKey] = tag
	return true
}

// ReadType decodes the type recorded in v.
// Sequences always report SequenceType, regardless of any type key content.
func (c *Codec) ReadType(v types.Value) (reflect.Type, bool) {
	switch v.Kind() {
	case types.KindSequence:
		return SequenceType, true
	case types.KindDocument:
		if !c.hasTypeKey {
			return nil, false
		}
		doc, _ := v.Document()
		tag, ok := doc[c.typeKey].(string)
		if !ok {
			return nil, false
		}
		return c.mapper.TypeFor(tag)
	case types.KindScalar, types.KindAbsent:
		return nil, false
	default:
		return nil, false
	}
}

// ReadTypeOr returns the recorded type when it can stand in for declared,
// otherwise declared
func (c *Codec) ReadTypeOr(v types.Value, declared reflect.Type) reflect.Type {
	t, ok := c.ReadType(v)
	if !ok || t == SequenceType {
		return declared
	}
	if declared == nil {
		return t
	}
	target := declared
	if target.Kind() == reflect.Ptr && t.Kind() != reflect.Ptr {
		target = normalize(target)
	}
	if t.AssignableTo(target) || reflect.PointerTo(t).AssignableTo(target) {
		return t
	}
	return declared
}
