package typetag

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/arthur-debert/nanomap/types"
)

// ErrEmptyTag is returned when a table maps a type to an empty tag
var ErrEmptyTag = errors.New("typetag: empty tag")

// Mapper converts between Go types and the tags persisted in documents.
// Implementations must be safe for concurrent use.
type Mapper interface {
	// TagFor returns the tag for t, or false when no type information should be written
	TagFor(t reflect.Type) (string, bool)

	// TypeFor returns the type for tag, or false when the tag cannot be resolved
	TypeFor(tag string) (reflect.Type, bool)
}

// DuplicateTagError reports two distinct types configured with the same tag
type DuplicateTagError struct {
	Tag    string
	First  reflect.Type
	Second reflect.Type
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("typetag: tag %q is mapped to both %s and %s", e.Tag, e.First, e.Second)
}

// Unwrap makes the error match types.ErrConfiguration
func (e *DuplicateTagError) Unwrap() error {
	return types.ErrConfiguration
}

// ConfigurableMapper maps types through an explicit table.
// Without a fallback it is strict: unmapped types and tags yield no type information.
type ConfigurableMapper struct {
	typeToTag map[reflect.Type]string
	tagToType map[string]reflect.Type
	fallback  Mapper
}

// ConfigurableOption configures a ConfigurableMapper
type ConfigurableOption func(*ConfigurableMapper)

// WithFallback consults m for types and tags missing from the table
func WithFallback(m Mapper) ConfigurableOption {
	return func(cm *ConfigurableMapper) {
		cm.fallback = m
	}
}

// NewConfigurableMapper validates table and builds the mapper.
// The table is scanned once; two types sharing a tag is a configuration error.
func NewConfigurableMapper(table map[reflect.Type]string, opts ...ConfigurableOption) (*ConfigurableMapper, error) {
	cm := &ConfigurableMapper{
		typeToTag: make(map[reflect.Type]string, len(table)),
		tagToType: make(map[string]reflect.Type, len(table)),
	}
	for _, opt := range opts {
		opt(cm)
	}

	// Scan in a stable order so the reported conflict is deterministic
	entries := make([]tableEntry, 0, len(table))
	for t, tag := range table {
		if t == nil {
			return nil, fmt.Errorf("%w: nil type in tag table", types.ErrConfiguration)
		}
		entries = append(entries, tableEntry{t: normalize(t), name: TypeName(t), tag: tag})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}
		return entries[i].t.String() < entries[j].t.String()
	})

	for _, e := range entries {
		if e.tag == "" {
			return nil, fmt.Errorf("%w: %w for %s", types.ErrConfiguration, ErrEmptyTag, e.t)
		}
		if existing, ok := cm.tagToType[e.tag]; ok && existing != e.t {
			return nil, &DuplicateTagError{Tag: e.tag, First: existing, Second: e.t}
		}
		if existing, ok := cm.typeToTag[e.t]; ok && existing != e.tag {
			return nil, fmt.Errorf("%w: type %s is mapped to both %q and %q", types.ErrConfiguration, e.t, existing, e.tag)
		}
		cm.tagToType[e.tag] = e.t
		cm.typeToTag[e.t] = e.tag
	}

	return cm, nil
}

type tableEntry struct {
	t    reflect.Type
	name string
	tag  string
}

// TagFor implements Mapper.TagFor
func (cm *ConfigurableMapper) TagFor(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	if tag, ok := cm.typeToTag[normalize(t)]; ok {
		return tag, true
	}
	if cm.fallback != nil {
		return cm.fallback.TagFor(t)
	}
	return "", false
}

// TypeFor implements Mapper.TypeFor
func (cm *ConfigurableMapper) TypeFor(tag string) (reflect.Type, bool) {
	if tag == "" {
		return nil, false
	}
	if t, ok := cm.tagToType[tag]; ok {
		return t, true
	}
	if cm.fallback != nil {
		return cm.fallback.TypeFor(tag)
	}
	return nil, false
}

// Strict reports whether the mapper has no fallback
func (cm *ConfigurableMapper) Strict() bool {
	return cm.fallback == nil
}

// Tags returns a copy of the configured tag table
func (cm *ConfigurableMapper) Tags() map[string]reflect.Type {
	out := make(map[string]reflect.Type, len(cm.tagToType))
	for tag, t := range cm.tagToType {
		out[tag] = t
	}
	return out
}
