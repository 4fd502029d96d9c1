package types

import (
	"fmt"
	"reflect"
	"strconv"
)

// Cardinality describes how many documents a reference property points at
type Cardinality int

const (
	// One is a singular reference
	One Cardinality = iota
	// Many is a collection-like reference resolved to a slice
	Many
	// Map is a keyed reference resolved to a map
	Map
)

// String returns the string representation of the Cardinality
func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// ParseCardinality parses the config spelling of a cardinality
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "", "one":
		return One, nil
	case "many":
		return Many, nil
	case "map":
		return Map, nil
	default:
		return One, fmt.Errorf("%w: unknown cardinality %q", ErrConfiguration, s)
	}
}

// MatchKind selects how a reference payload is turned into a store query
type MatchKind int

const (
	// MatchID treats the payload as the target's identifier
	MatchID MatchKind = iota
	// MatchField matches the payload against a named field of the target
	MatchField
	// MatchExpression binds the payload into a filter expression
	MatchExpression
)

// String returns the string representation of the MatchKind
func (m MatchKind) String() string {
	switch m {
	case MatchID:
		return "id"
	case MatchField:
		return "field"
	case MatchExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// ParseMatchKind parses the config spelling of a match kind
func ParseMatchKind(s string) (MatchKind, error) {
	switch s {
	case "", "id":
		return MatchID, nil
	case "field":
		return MatchField, nil
	case "expression":
		return MatchExpression, nil
	default:
		return MatchID, fmt.Errorf("%w: unknown match kind %q", ErrConfiguration, s)
	}
}

// FilterTemplate describes how to build a query from a reference payload
type FilterTemplate struct {
	Match MatchKind
	// Field is the target field compared against the payload (MatchField)
	Field string
	// Expression is a boolean filter; the payload is bound as "payload" (MatchExpression)
	Expression string
}

// TargetField is the target field a payload value is compared against:
// Field for MatchField, the identifier otherwise
func (f FilterTemplate) TargetField() string {
	if f.Match == MatchField && f.Field != "" {
		return f.Field
	}
	return IDField
}

// PropertyMeta exposes the reference metadata of a single property.
// Implementations are read-only.
type PropertyMeta interface {
	Name() string
	IsCollectionLike() bool
	IsMap() bool
	IsLazy() bool
	IsIDProperty() bool

	// TargetType is the element type of the referenced values; nil means Document
	TargetType() reflect.Type

	// Collection is where the referenced documents live
	Collection() ReferenceCollection

	Filter() FilterTemplate

	// HasKeyField reports whether map keys are read from a target field
	HasKeyField() bool

	// KeyFor returns the map key for the i-th fetched document of a map-valued
	// property. Keyed payloads without a key field are paired by the delegate.
	KeyFor(doc Document, index int) (string, error)
}

// Property is the stock PropertyMeta implementation
type Property struct {
	Field       string
	Cardinality Cardinality
	Lazy        bool
	ID          bool
	Target      reflect.Type
	Location    ReferenceCollection
	Template    FilterTemplate

	// KeyField names the target field used as map key. When empty, keys come
	// from a keyed payload document or, failing that, from store order.
	KeyField string
}

var _ PropertyMeta = (*Property)(nil)

func (p *Property) Name() string                    { return p.Field }
func (p *Property) IsCollectionLike() bool          { return p.Cardinality == Many }
func (p *Property) IsMap() bool                     { return p.Cardinality == Map }
func (p *Property) IsLazy() bool                    { return p.Lazy }
func (p *Property) IsIDProperty() bool              { return p.ID }
func (p *Property) HasKeyField() bool               { return p.KeyField != "" }
func (p *Property) TargetType() reflect.Type        { return p.Target }
func (p *Property) Collection() ReferenceCollection { return p.Location }
func (p *Property) Filter() FilterTemplate          { return p.Template }

// KeyFor implements PropertyMeta.KeyFor
func (p *Property) KeyFor(doc Document, index int) (string, error) {
	if p.KeyField == "" {
		return strconv.Itoa(index), nil
	}
	v, ok := doc[p.KeyField]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: document %q has no key field %q", ErrInvalidArgument, doc.IDString(), p.KeyField)
	}
	return fmt.Sprintf("%v", v), nil
}
