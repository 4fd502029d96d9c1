package types

import (
	"errors"
	"fmt"
	"sort"
)

// IDField is the document key holding a stored document's identifier
const IDField = "_id"

// DefaultTypeKey is the document key used to persist type tags
const DefaultTypeKey = "_class"

var (
	// ErrConfiguration marks a mapping setup that can never work (e.g. two types sharing a tag)
	ErrConfiguration = errors.New("nanomap: configuration error")

	// ErrUnsupported is returned by deliberately disabled components
	ErrUnsupported = errors.New("nanomap: unsupported operation")

	// ErrInvalidArgument is returned when a raw value has the wrong shape
	ErrInvalidArgument = errors.New("nanomap: invalid argument")

	// ErrNotFound is returned when a document lookup by id finds nothing
	ErrNotFound = errors.New("nanomap: not found")
)

// Document is a schemaless keyed document as read from or written to the store
type Document map[string]interface{}

// ID returns the document identifier and whether it is set
func (d Document) ID() (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	id, ok := d[IDField]
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// IDString returns the identifier formatted as a string, or "" when unset
func (d Document) IDString() string {
	id, ok := d.ID()
	if !ok {
		return ""
	}
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", id)
}

// Clone returns a deep copy of the document.
// Nested documents and sequences are copied; scalars are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneRaw(v)
	}
	return out
}

// Keys returns the document keys in sorted order
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneRaw(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]interface{}:
		return Document(t).Clone()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneRaw(item)
		}
		return out
	default:
		return v
	}
}
