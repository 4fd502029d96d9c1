package typetag

import (
	"errors"
	"reflect"
	"strings"
	"sync"
)

var (
	// ErrNilType is returned when a nil reflect.Type is registered
	ErrNilType = errors.New("typetag: nil reflect.Type provided")
	// ErrUnnamedType is returned when a type has no package-qualified name
	ErrUnnamedType = errors.New("typetag: type has no qualified name")
)

// TypeName returns the fully qualified "import/path.Type" name of t.
// Pointers are dereferenced and generic instantiation parameters stripped.
// Builtin and unnamed types yield "".
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	t = normalize(t)
	if t.PkgPath() == "" || t.Name() == "" {
		return ""
	}
	return t.PkgPath() + "." + stripTypeParams(t.Name())
}

// normalize strips pointer indirections
func normalize(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// stripTypeParams removes the generic suffix: "Page[int]" -> "Page"
func stripTypeParams(s string) string {
	if i := strings.IndexByte(s, '['); i >= 0 {
		return s[:i]
	}
	return s
}

// TypeRegistry is the set of types that can be reconstructed from their
// qualified names. Go cannot load a type by name, so fallback resolution only
// succeeds for types registered here or seen by a SimpleMapper.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry creates a registry holding the given types
func NewTypeRegistry(ts ...reflect.Type) *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]reflect.Type)}
	for _, t := range ts {
		_ = r.Register(t)
	}
	return r
}

// Register adds t under its qualified name. Re-registration is idempotent.
func (r *TypeRegistry) Register(t reflect.Type) error {
	if t == nil {
		return ErrNilType
	}
	name := TypeName(t)
	if name == "" {
		return ErrUnnamedType
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = normalize(t)
	return nil
}

// Lookup returns the type registered under name
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered names
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// SimpleMapper derives tags from qualified type names
type SimpleMapper struct {
	registry *TypeRegistry
	// seen caches tag -> type for every type this mapper produced a tag for
	seen sync.Map
}

// NewSimpleMapper creates a name-based mapper backed by registry (which may be nil)
func NewSimpleMapper(registry *TypeRegistry) *SimpleMapper {
	return &SimpleMapper{registry: registry}
}

// TagFor implements Mapper.TagFor
func (m *SimpleMapper) TagFor(t reflect.Type) (string, bool) {
	name := TypeName(t)
	if name == "" {
		return "", false
	}
	m.seen.LoadOrStore(name, normalize(t))
	return name, true
}

// TypeFor implements Mapper.TypeFor
func (m *SimpleMapper) TypeFor(tag string) (reflect.Type, bool) {
	if tag == "" {
		return nil, false
	}
	if t, ok := m.seen.Load(tag); ok {
		return t.(reflect.Type), true
	}
	return m.registry.Lookup(tag)
}
