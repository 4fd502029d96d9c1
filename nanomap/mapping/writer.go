package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/arthur-debert/nanomap/nanomap/typetag"
	"github.com/arthur-debert/nanomap/types"
)

var timeType = reflect.TypeOf(time.Time{})

// identifier is implemented by unresolved references, which are written back
// as their payload
type identifier interface {
	Identity() (types.ReferenceLiteral, bool)
}

// DocumentWriter encodes Go values as documents, recording type tags at the
// root and wherever a value's runtime type differs from its declared type
type DocumentWriter struct {
	codec *typetag.Codec
}

// NewDocumentWriter creates a writer tagging values through codec
func NewDocumentWriter(codec *typetag.Codec) *DocumentWriter {
	return &DocumentWriter{codec: codec}
}

// Write encodes v, which must be a struct, a pointer to one, or a string-keyed map
func (w *DocumentWriter) Write(v interface{}) (types.Document, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: cannot write nil %T", types.ErrInvalidArgument, v)
		}
		rv = rv.Elem()
	}

	switch {
	case rv.Kind() == reflect.Struct && rv.Type() != timeType:
		doc := w.encodeStruct(rv)
		w.codec.WriteType(doc, rv.Type())
		return doc, nil
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		doc, _ := w.encodeValue(rv, rv.Type()).(types.Document)
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: cannot write %T as a document", types.ErrInvalidArgument, v)
	}
}

func (w *DocumentWriter) encodeStruct(rv reflect.Value) types.Document {
	doc := types.Document{}
	w.encodeFields(doc, rv)
	return doc
}

func (w *DocumentWriter) encodeFields(doc types.Document, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts := parseTag(field)
		if name == "-" {
			continue
		}
		fv := rv.Field(i)
		if opts.squash && fv.Kind() == reflect.Struct {
			w.encodeFields(doc, fv)
			continue
		}
		if opts.omitempty && fv.IsZero() {
			continue
		}
		doc[name] = w.encodeValue(fv, field.Type)
	}
}

// encodeValue converts rv to plain document values. declared is the static
// type of the slot rv came from.
func (w *DocumentWriter) encodeValue(rv reflect.Value, declared reflect.Type) interface{} {
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.CanInterface() {
		if ref, ok := rv.Interface().(identifier); ok {
			literal, _ := ref.Identity()
			return literal.Payload
		}
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return w.encodeValue(rv.Elem(), declared)
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface()
		}
		doc := w.encodeStruct(rv)
		if declaredElem(declared) != rv.Type() {
			w.codec.WriteType(doc, rv.Type())
		}
		return doc
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		elemType := rv.Type().Elem()
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = w.encodeValue(rv.Index(i), elemType)
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}
		elemType := rv.Type().Elem()
		out := make(types.Document, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = w.encodeValue(iter.Value(), elemType)
		}
		return out
	default:
		return rv.Interface()
	}
}

func declaredElem(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

type tagOptions struct {
	omitempty bool
	squash    bool
}

func parseTag(field reflect.StructField) (string, tagOptions) {
	tag := field.Tag.Get(TagName)
	name, rest, _ := strings.Cut(tag, ",")
	var opts tagOptions
	for _, opt := range strings.Split(rest, ",") {
		switch opt {
		case "omitempty":
			opts.omitempty = true
		case "squash":
			opts.squash = true
		}
	}
	if name == "" {
		name = field.Name
	}
	return name, opts
}
