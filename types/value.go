package types

import (
	"fmt"
	"reflect"
)

// Kind classifies a raw store value
type Kind int

const (
	// KindAbsent is a missing or null value
	KindAbsent Kind = iota
	// KindScalar is any value that is neither a document nor a sequence
	KindScalar
	// KindDocument is a keyed document
	KindDocument
	// KindSequence is an ordered list of values
	KindSequence
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindScalar:
		return "scalar"
	case KindDocument:
		return "document"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a classified raw store value.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Value struct {
	kind   Kind
	scalar interface{}
	doc    Document
	items  []Value
}

// Absent is the absent value
var Absent = Value{kind: KindAbsent}

// Scalar wraps a scalar value
func Scalar(v interface{}) Value {
	if v == nil {
		return Absent
	}
	return Value{kind: KindScalar, scalar: v}
}

// DocumentValue wraps a keyed document
func DocumentValue(d Document) Value {
	if d == nil {
		return Absent
	}
	return Value{kind: KindDocument, doc: d}
}

// Sequence wraps an ordered list of values
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// ValueOf classifies a raw Go value.
// Nested reference descriptors are unwrapped first.
func ValueOf(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Absent
	case Value:
		return v
	case ReferenceDescriptor:
		return ValueOf(v.Unwrap())
	case *ReferenceDescriptor:
		if v == nil {
			return Absent
		}
		return ValueOf(v.Unwrap())
	case Document:
		return DocumentValue(v)
	case map[string]interface{}:
		return DocumentValue(Document(v))
	case []interface{}:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = ValueOf(item)
		}
		return Sequence(items...)
	case []string:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = Scalar(item)
		}
		return Sequence(items...)
	case []Document:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = DocumentValue(item)
		}
		return Sequence(items...)
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Absent
		}
	case reflect.Slice:
		if rv.IsNil() {
			return Absent
		}
		fallthrough
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// byte slices are opaque binary scalars
			return Scalar(raw)
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = ValueOf(rv.Index(i).Interface())
		}
		return Sequence(items...)
	}
	return Scalar(raw)
}

// Kind returns the value's classification
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is absent
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Scalar returns the scalar payload
func (v Value) Scalar() (interface{}, bool) {
	return v.scalar, v.kind == KindScalar
}

// Document returns the document payload
func (v Value) Document() (Document, bool) {
	return v.doc, v.kind == KindDocument
}

// Items returns the sequence payload
func (v Value) Items() ([]Value, bool) {
	return v.items, v.kind == KindSequence
}

// Len returns the number of items in a sequence, 1 for documents and scalars
// and 0 when absent
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.items)
	case KindAbsent:
		return 0
	default:
		return 1
	}
}

// Raw converts the value back to plain Go values
func (v Value) Raw() interface{} {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindDocument:
		return v.doc
	case KindSequence:
		out := make([]interface{}, len(v.items))
		for i, item := range v.items {
			out[i] = item.Raw()
		}
		return out
	default:
		return nil
	}
}

// String implements fmt.Stringer
func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.kind, v.Raw())
}
