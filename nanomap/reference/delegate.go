// Package reference resolves reference-bearing properties into the documents
// they point at.
//
// A Resolver decides between eager and lazy resolution and routes fetches by
// cardinality; the LookupDelegate turns a payload into a query, runs it through
// the lookup it is handed and materialises the results with an EntityReader.
// Lazy properties resolve to a *LazyReference that fetches at most once.
package reference

import (
	"context"
	"fmt"
	"reflect"

	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/nanomap/mapping"
	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// LookupFunc runs q against coll
type LookupFunc func(ctx context.Context, q query.Query, coll types.ReferenceCollection) (*loader.Cursor, error)

// Delegate reads a single reference given a lookup strategy
type Delegate interface {
	ReadReference(ctx context.Context, prop types.PropertyMeta, desc types.ReferenceDescriptor,
		lookup LookupFunc, reader mapping.EntityReader) (interface{}, error)
}

// LookupDelegate is the stock Delegate. It holds no state.
type LookupDelegate struct{}

// NewLookupDelegate creates a LookupDelegate
func NewLookupDelegate() *LookupDelegate {
	return &LookupDelegate{}
}

var _ Delegate = (*LookupDelegate)(nil)

var documentType = reflect.TypeOf(types.Document(nil))

// ReadReference implements Delegate.ReadReference.
//
// Singular properties yield the first materialised document or nil, collection
// properties a []T in store order and map properties a map[string]T. Map keys
// come from a keyed payload document (one entry per key whose target was
// fetched) or else from prop.KeyFor. An absent payload yields the empty value
// without calling lookup.
// Lookup and iteration errors are returned unchanged.
func (d *LookupDelegate) ReadReference(ctx context.Context, prop types.PropertyMeta, desc types.ReferenceDescriptor,
	lookup LookupFunc, reader mapping.EntityReader) (interface{}, error) {
	payload := desc.Payload()
	if payload.IsAbsent() {
		return emptyResult(prop), nil
	}

	q, err := query.FromPayload(prop.Filter(), payload)
	if err != nil {
		return nil, fmt.Errorf("reference %q: %w", prop.Name(), err)
	}

	cursor, err := lookup(ctx, q, prop.Collection())
	if err != nil {
		return nil, err
	}

	switch {
	case prop.IsMap():
		return readMap(prop, payload, cursor, reader)
	case prop.IsCollectionLike():
		return readSlice(prop, cursor, reader)
	default:
		return readOne(prop, cursor, reader)
	}
}

func elemType(prop types.PropertyMeta) reflect.Type {
	if t := prop.TargetType(); t != nil {
		return t
	}
	return documentType
}

func emptyResult(prop types.PropertyMeta) interface{} {
	elem := elemType(prop)
	switch {
	case prop.IsMap():
		return reflect.MakeMap(reflect.MapOf(reflect.TypeOf(""), elem)).Interface()
	case prop.IsCollectionLike():
		return reflect.MakeSlice(reflect.SliceOf(elem), 0, 0).Interface()
	default:
		return nil
	}
}

func readOne(prop types.PropertyMeta, cursor *loader.Cursor, reader mapping.EntityReader) (interface{}, error) {
	for doc, err := range cursor.All() {
		if err != nil {
			return nil, err
		}
		return reader.Read(doc, prop.TargetType())
	}
	return nil, nil
}

func readSlice(prop types.PropertyMeta, cursor *loader.Cursor, reader mapping.EntityReader) (interface{}, error) {
	elem := elemType(prop)
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, 0)
	for doc, err := range cursor.All() {
		if err != nil {
			return nil, err
		}
		v, err := materialize(prop, doc, elem, reader)
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, v)
	}
	return out.Interface(), nil
}

func readMap(prop types.PropertyMeta, payload types.Value, cursor *loader.Cursor, reader mapping.EntityReader) (interface{}, error) {
	if keyed, ok := keyedPayload(prop, payload); ok {
		return readKeyedMap(prop, keyed, cursor, reader)
	}

	elem := elemType(prop)
	out := reflect.MakeMap(reflect.MapOf(reflect.TypeOf(""), elem))
	i := 0
	for doc, err := range cursor.All() {
		if err != nil {
			return nil, err
		}
		key, err := prop.KeyFor(doc, i)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", prop.Name(), err)
		}
		v, err := materialize(prop, doc, elem, reader)
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(reflect.ValueOf(key), v)
		i++
	}
	return out.Interface(), nil
}

// keyedPayload returns the {key: value} payload that names map entries.
// A key field on the property takes precedence, expression payloads are
// filter arguments rather than key maps, and a document carrying an identifier
// is an embedded target.
func keyedPayload(prop types.PropertyMeta, payload types.Value) (types.Document, bool) {
	if prop.HasKeyField() || prop.Filter().Match == types.MatchExpression {
		return nil, false
	}
	doc, ok := payload.Document()
	if !ok {
		return nil, false
	}
	if _, hasID := doc.ID(); hasID {
		return nil, false
	}
	return doc, true
}

// readKeyedMap emits one entry per payload key whose target was fetched.
// Targets are matched on the filter's target field with the query's value
// normalisation, so several keys may share one fetched document.
func readKeyedMap(prop types.PropertyMeta, keyed types.Document, cursor *loader.Cursor, reader mapping.EntityReader) (interface{}, error) {
	field := prop.Filter().TargetField()
	byValue := make(map[string]types.Document)
	for doc, err := range cursor.All() {
		if err != nil {
			return nil, err
		}
		if k, ok := query.FieldKey(doc, field); ok {
			if _, seen := byValue[k]; !seen {
				byValue[k] = doc
			}
		}
	}

	elem := elemType(prop)
	out := reflect.MakeMap(reflect.MapOf(reflect.TypeOf(""), elem))
	for _, key := range keyed.Keys() {
		if keyed[key] == nil {
			continue
		}
		doc, ok := byValue[query.Normalize(keyed[key])]
		if !ok {
			continue
		}
		v, err := materialize(prop, doc, elem, reader)
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(reflect.ValueOf(key), v)
	}
	return out.Interface(), nil
}

// materialize reads doc and converts the result to a value of type elem
func materialize(prop types.PropertyMeta, doc types.Document, elem reflect.Type, reader mapping.EntityReader) (reflect.Value, error) {
	v, err := reader.Read(doc, prop.TargetType())
	if err != nil {
		return reflect.Value{}, err
	}
	if v == nil {
		return reflect.Zero(elem), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(elem) {
		return reflect.Value{}, fmt.Errorf("%w: reference %q read %s, want %s",
			types.ErrInvalidArgument, prop.Name(), rv.Type(), elem)
	}
	return rv, nil
}
