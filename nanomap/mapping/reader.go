// Package mapping converts between stored documents and typed Go values.
//
// DocumentReader is the entity reader used by reference resolution: it decodes
// a document into a declared type, consulting the type tag codec to pick the
// concrete type of polymorphic values (the root, interface-typed fields and
// elements of mixed lists). DocumentWriter does the reverse and writes the
// tags. Struct fields are named by their `doc` tag.
package mapping

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/arthur-debert/nanomap/nanomap/typetag"
	"github.com/arthur-debert/nanomap/types"
)

// TagName is the struct tag naming document fields
const TagName = "doc"

// EntityReader materialises a raw document into a value of the target type.
// A nil target means the raw document itself.
type EntityReader interface {
	Read(doc types.Document, target reflect.Type) (interface{}, error)
}

// DocumentReader is the default EntityReader
type DocumentReader struct {
	codec *typetag.Codec
}

// NewDocumentReader creates a reader resolving polymorphic values through codec
func NewDocumentReader(codec *typetag.Codec) *DocumentReader {
	return &DocumentReader{codec: codec}
}

var _ EntityReader = (*DocumentReader)(nil)

var emptyInterface = reflect.TypeOf((*interface{})(nil)).Elem()

// Read implements EntityReader.Read
func (r *DocumentReader) Read(doc types.Document, target reflect.Type) (interface{}, error) {
	if doc == nil {
		return nil, nil
	}
	if target == nil {
		return doc.Clone(), nil
	}

	concrete := r.codec.ReadTypeOr(types.DocumentValue(doc), target)
	if concrete.Kind() == reflect.Ptr {
		concrete = concrete.Elem()
	}
	if concrete.Kind() == reflect.Interface {
		if concrete == emptyInterface {
			return doc.Clone(), nil
		}
		return nil, fmt.Errorf("%w: cannot materialize %s from document %q without a type tag",
			types.ErrInvalidArgument, target, doc.IDString())
	}

	value, ptr, err := r.decodeInto(doc, concrete)
	if err != nil {
		return nil, err
	}
	return fit(value, ptr, target)
}

// decodeInto decodes data into a fresh value of type t
func (r *DocumentReader) decodeInto(data interface{}, t reflect.Type) (reflect.Value, reflect.Value, error) {
	ptr := reflect.New(t)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			r.polymorphicHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		Result:  ptr.Interface(),
		TagName: TagName,
	})
	if err != nil {
		return reflect.Value{}, reflect.Value{}, err
	}
	if err := decoder.Decode(data); err != nil {
		return reflect.Value{}, reflect.Value{}, fmt.Errorf("failed to decode %s: %w", t, err)
	}
	return ptr.Elem(), ptr, nil
}

// polymorphicHook replaces tagged documents headed for interface-typed slots
// with a value of the tagged type
func (r *DocumentReader) polymorphicHook(from, to reflect.Value) (interface{}, error) {
	data := from.Interface()
	if to.Kind() != reflect.Interface {
		return data, nil
	}
	doc, ok := looseDocument(data)
	if !ok {
		return data, nil
	}
	t, ok := r.codec.ReadType(types.DocumentValue(doc))
	if !ok || t == typetag.SequenceType {
		return data, nil
	}
	value, ptr, err := r.decodeInto(doc, t)
	if err != nil {
		return nil, err
	}
	out, err := fit(value, ptr, to.Type())
	if err != nil {
		// the tag names a type this slot cannot hold; let the decoder report it
		return data, nil
	}
	return out, nil
}

// fit returns value or its pointer, whichever the target type accepts
func fit(value, ptr reflect.Value, target reflect.Type) (interface{}, error) {
	switch {
	case target.Kind() == reflect.Ptr && ptr.Type().AssignableTo(target):
		return ptr.Interface(), nil
	case value.Type().AssignableTo(target):
		return value.Interface(), nil
	case ptr.Type().AssignableTo(target):
		return ptr.Interface(), nil
	default:
		return nil, fmt.Errorf("%w: %s is not assignable to %s", types.ErrInvalidArgument, value.Type(), target)
	}
}

func looseDocument(data interface{}) (types.Document, bool) {
	switch d := data.(type) {
	case types.Document:
		return d, true
	case map[string]interface{}:
		return types.Document(d), true
	default:
		return nil, false
	}
}

// AsDocument interprets a raw store value as a document.
// Anything that is not keyed fails with types.ErrInvalidArgument naming its Go type.
func AsDocument(raw interface{}) (types.Document, error) {
	v := types.ValueOf(raw)
	switch v.Kind() {
	case types.KindDocument:
		doc, _ := v.Document()
		return doc, nil
	case types.KindAbsent:
		return nil, fmt.Errorf("%w: cannot convert nil to a document", types.ErrInvalidArgument)
	case types.KindScalar, types.KindSequence:
		if m, ok := raw.(map[string]string); ok {
			doc := make(types.Document, len(m))
			for k, val := range m {
				doc[k] = val
			}
			return doc, nil
		}
		return nil, fmt.Errorf("%w: cannot convert %T to a document", types.ErrInvalidArgument, raw)
	default:
		return nil, fmt.Errorf("%w: cannot convert %T to a document", types.ErrInvalidArgument, raw)
	}
}
