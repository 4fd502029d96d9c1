package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/arthur-debert/nanomap/types"
)

// State is the resolution state of a LazyReference
type State int32

const (
	// Unresolved means no fetch has been attempted
	Unresolved State = iota
	// Resolving means a fetch is in flight
	Resolving
	// Resolved is terminal; the value is cached
	Resolved
	// Failed is terminal; the error is cached
	Failed
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case Unresolved:
		return "UNRESOLVED"
	case Resolving:
		return "RESOLVING"
	case Resolved:
		return "RESOLVED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) terminal() bool {
	return s == Resolved || s == Failed
}

// FetchFunc produces the value of a lazy reference
type FetchFunc func(ctx context.Context) (interface{}, error)

// LazyReference stands in for a referenced value until Target is called.
// At most one fetch is issued per instance: callers arriving while it is in
// flight block until it finishes and all callers see the same value or error.
type LazyReference struct {
	fetch       FetchFunc
	identity    types.ReferenceLiteral
	hasIdentity bool

	mu    sync.Mutex
	state atomic.Int32
	value interface{}
	err   error
}

// NewLazyReference creates an unresolved reference. identity describes what
// it points at and is reported by Identity; hasIdentity is false for absent
// payloads.
func NewLazyReference(fetch FetchFunc, identity types.ReferenceLiteral, hasIdentity bool) *LazyReference {
	return &LazyReference{fetch: fetch, identity: identity, hasIdentity: hasIdentity}
}

// PanicError is the failure cached when a fetch panics. The panic itself is
// re-raised in the caller that triggered the fetch.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("reference fetch panicked: %v", e.Value)
}

// Target returns the referenced value, fetching it on first use.
// The context of the caller that triggers the fetch is the one used for it;
// a cancellation observed by that fetch is cached like any other failure.
func (r *LazyReference) Target(ctx context.Context) (interface{}, error) {
	if r.State().terminal() {
		return r.value, r.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State().terminal() {
		return r.value, r.err
	}

	r.state.Store(int32(Resolving))
	defer func() {
		if p := recover(); p != nil {
			r.err = &PanicError{Value: p}
			r.state.Store(int32(Failed))
			panic(p)
		}
	}()
	value, err := r.fetch(ctx)
	if err != nil {
		r.err = err
		r.state.Store(int32(Failed))
		return nil, err
	}
	r.value = value
	r.state.Store(int32(Resolved))
	return value, nil
}

// Identity returns the reference's location and payload without resolving it
func (r *LazyReference) Identity() (types.ReferenceLiteral, bool) {
	return r.identity, r.hasIdentity
}

// State returns the current resolution state
func (r *LazyReference) State() State {
	return State(r.state.Load())
}

// IsResolved reports whether Target has completed successfully
func (r *LazyReference) IsResolved() bool {
	return r.State() == Resolved
}

func (r *LazyReference) String() string {
	return fmt.Sprintf("ref(%s %v %s)", r.identity.Collection, r.identity.Payload, r.State())
}

// MarshalJSON writes the identity literal, never the resolved value
func (r *LazyReference) MarshalJSON() ([]byte, error) {
	if !r.hasIdentity {
		return []byte("null"), nil
	}
	return json.Marshal(r.identity)
}

// Ref is a typed view over a reference property value
type Ref[T any] struct {
	value interface{}
}

// RefOf wraps a resolved value or a *LazyReference
func RefOf[T any](v interface{}) Ref[T] {
	return Ref[T]{value: v}
}

// Get resolves the reference if needed and returns it as T
func (r Ref[T]) Get(ctx context.Context) (T, error) {
	return Resolve[T](ctx, r.value)
}

// Lazy returns the underlying lazy reference, if any
func (r Ref[T]) Lazy() (*LazyReference, bool) {
	lazy, ok := r.value.(*LazyReference)
	return lazy, ok
}

// Resolve returns v as T, calling Target first when v is a *LazyReference.
// A nil value yields the zero T.
func Resolve[T any](ctx context.Context, v interface{}) (T, error) {
	var zero T
	if lazy, ok := v.(*LazyReference); ok {
		if lazy == nil {
			return zero, nil
		}
		target, err := lazy.Target(ctx)
		if err != nil {
			return zero, err
		}
		v = target
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: reference holds %T, not %s",
			types.ErrInvalidArgument, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return out, nil
}
