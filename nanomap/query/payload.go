package query

import (
	"fmt"

	"github.com/arthur-debert/nanomap/types"
)

// FromPayload builds the query selecting the documents a reference payload points at.
// The payload shape is interpreted according to tmpl, never auto-detected:
//   - MatchID: scalars are ids, sequences are id lists, documents are either an
//     embedded target (its _id is used) or a key -> id map
//   - MatchField: like MatchID but compared against tmpl.Field
//   - MatchExpression: the raw payload is bound as "payload"
func FromPayload(tmpl types.FilterTemplate, payload types.Value) (Query, error) {
	if payload.IsAbsent() {
		return nil, fmt.Errorf("%w: cannot build a query from an absent payload", types.ErrInvalidArgument)
	}

	switch tmpl.Match {
	case types.MatchID:
		values, err := payloadValues(payload)
		if err != nil {
			return nil, err
		}
		return ByID(values...), nil
	case types.MatchField:
		if tmpl.Field == "" {
			return nil, fmt.Errorf("%w: field match requires a field name", types.ErrConfiguration)
		}
		values, err := payloadValues(payload)
		if err != nil {
			return nil, err
		}
		return In(tmpl.Field, values...), nil
	case types.MatchExpression:
		return Expr(tmpl.Expression, map[string]interface{}{"payload": payload.Raw()})
	default:
		return nil, fmt.Errorf("%w: unknown match kind %d", types.ErrConfiguration, tmpl.Match)
	}
}

// payloadValues flattens a payload into the scalar values to match on
func payloadValues(payload types.Value) ([]interface{}, error) {
	switch payload.Kind() {
	case types.KindScalar:
		v, _ := payload.Scalar()
		return []interface{}{v}, nil
	case types.KindDocument:
		doc, _ := payload.Document()
		if id, ok := doc.ID(); ok {
			return []interface{}{id}, nil
		}
		values := make([]interface{}, 0, len(doc))
		for _, key := range doc.Keys() {
			if doc[key] == nil {
				continue
			}
			values = append(values, doc[key])
		}
		return values, nil
	case types.KindSequence:
		items, _ := payload.Items()
		values := make([]interface{}, 0, len(items))
		for _, item := range items {
			switch item.Kind() {
			case types.KindAbsent:
				continue
			case types.KindSequence:
				return nil, fmt.Errorf("%w: nested sequence in reference payload", types.ErrInvalidArgument)
			case types.KindScalar, types.KindDocument:
				nested, err := payloadValues(item)
				if err != nil {
					return nil, err
				}
				values = append(values, nested...)
			}
		}
		return values, nil
	case types.KindAbsent:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected payload kind %s", types.ErrInvalidArgument, payload.Kind())
	}
}
