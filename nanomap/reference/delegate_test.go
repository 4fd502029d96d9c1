package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/nanomap/nanomap/loader"
	"github.com/arthur-debert/nanomap/nanomap/query"
	"github.com/arthur-debert/nanomap/types"
)

// failingLookup fails the test if the delegate ever looks anything up
func failingLookup(t *testing.T) LookupFunc {
	return func(context.Context, query.Query, types.ReferenceCollection) (*loader.Cursor, error) {
		t.Errorf("lookup must not be called")
		return loader.Empty(), nil
	}
}

func TestReadReferenceEmptyPayload(t *testing.T) {
	ctx := context.Background()
	d := NewLookupDelegate()

	tests := []struct {
		name string
		prop *types.Property
		want interface{}
	}{
		{name: "singular", prop: &types.Property{Field: "f", Target: userType}, want: nil},
		{name: "collection", prop: &types.Property{Field: "f", Cardinality: types.Many, Target: userType}, want: []user{}},
		{name: "map", prop: &types.Property{Field: "f", Cardinality: types.Map, Target: userType}, want: map[string]user{}},
		{name: "untyped collection", prop: &types.Property{Field: "f", Cardinality: types.Many}, want: []types.Document{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, source := range []interface{}{nil, types.NewReferenceDescriptor(nil, nil)} {
				desc := types.NewReferenceDescriptor(types.Document{}, source)
				got, err := d.ReadReference(ctx, tt.prop, desc, failingLookup(t), newReader())
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestReadReferenceMaps(t *testing.T) {
	ctx := context.Background()
	lookupIn := func(docs []types.Document) LookupFunc {
		return func(_ context.Context, q query.Query, _ types.ReferenceCollection) (*loader.Cursor, error) {
			var out []types.Document
			for _, d := range docs {
				if ok, _ := q.Match(d); ok {
					out = append(out, d)
				}
			}
			return loader.Of(out...), nil
		}
	}
	staff := []types.Document{
		{"_id": "1", "name": "ann", "email": "a@x.io"},
		{"_id": "2", "name": "bo", "email": "b@x.io"},
	}
	numbered := []types.Document{
		{"_id": int64(1500000), "name": "ann"},
		{"_id": 7.0, "name": "bo"},
	}

	tests := []struct {
		name    string
		docs    []types.Document
		prop    *types.Property
		payload interface{}
		want    interface{}
	}{
		{
			name:    "keys from payload document",
			prop:    &types.Property{Field: "roles", Cardinality: types.Map, Target: userType},
			payload: map[string]interface{}{"lead": "u2", "backup": "u1"},
			want: map[string]user{
				"lead":   {ID: "u2", Name: "bo"},
				"backup": {ID: "u1", Name: "ann"},
			},
		},
		{
			name:    "payload keys sharing one target",
			prop:    &types.Property{Field: "roles", Cardinality: types.Map, Target: userType},
			payload: map[string]interface{}{"lead": "u1", "backup": "u1", "owner": "u2"},
			want: map[string]user{
				"lead":   {ID: "u1", Name: "ann"},
				"backup": {ID: "u1", Name: "ann"},
				"owner":  {ID: "u2", Name: "bo"},
			},
		},
		{
			name:    "payload keys without a target are skipped",
			prop:    &types.Property{Field: "roles", Cardinality: types.Map, Target: userType},
			payload: map[string]interface{}{"lead": "u1", "ghost": "u9", "none": nil},
			want:    map[string]user{"lead": {ID: "u1", Name: "ann"}},
		},
		{
			name: "payload keys matched on a target field",
			docs: staff,
			prop: &types.Property{
				Field:       "leads",
				Cardinality: types.Map,
				Template:    types.FilterTemplate{Match: types.MatchField, Field: "email"},
			},
			payload: map[string]interface{}{"lead": "a@x.io", "backup": "b@x.io", "deputy": "a@x.io"},
			want: map[string]types.Document{
				"lead":   staff[0],
				"backup": staff[1],
				"deputy": staff[0],
			},
		},
		{
			name:    "numeric ids in payload document",
			docs:    numbered,
			prop:    &types.Property{Field: "roles", Cardinality: types.Map},
			payload: map[string]interface{}{"lead": 1.5e+06, "backup": int64(7)},
			want: map[string]types.Document{
				"lead":   numbered[0],
				"backup": numbered[1],
			},
		},
		{
			name:    "keys from target field",
			prop:    &types.Property{Field: "byName", Cardinality: types.Map, Target: userType, KeyField: "name"},
			payload: []interface{}{"u1", "u3"},
			want: map[string]user{
				"ann": {ID: "u1", Name: "ann"},
				"cy":  {ID: "u3", Name: "cy"},
			},
		},
		{
			name:    "key field wins over payload keys",
			prop:    &types.Property{Field: "byName", Cardinality: types.Map, Target: userType, KeyField: "name"},
			payload: map[string]interface{}{"lead": "u2"},
			want:    map[string]user{"bo": {ID: "u2", Name: "bo"}},
		},
		{
			name:    "keys from store order",
			prop:    &types.Property{Field: "ordered", Cardinality: types.Map},
			payload: []interface{}{"u3", "u1"},
			want: map[string]types.Document{
				"0": {"_id": "u1", "name": "ann"},
				"1": {"_id": "u3", "name": "cy"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := tt.docs
			if docs == nil {
				docs = userDocs()
			}
			desc := types.NewReferenceDescriptor(nil, tt.payload)
			got, err := NewLookupDelegate().ReadReference(ctx, tt.prop, desc, lookupIn(docs), newReader())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadReferenceFilterTemplates(t *testing.T) {
	ctx := context.Background()
	docs := []types.Document{
		{"_id": "1", "email": "a@x.io", "team": "core"},
		{"_id": "2", "email": "b@x.io", "team": "edge"},
	}
	var seen string
	lookup := func(_ context.Context, q query.Query, coll types.ReferenceCollection) (*loader.Cursor, error) {
		seen = q.String()
		var out []types.Document
		for _, d := range docs {
			if ok, err := q.Match(d); err != nil {
				return nil, err
			} else if ok {
				out = append(out, d)
			}
		}
		return loader.Of(out...), nil
	}

	byField := &types.Property{Field: "owner", Template: types.FilterTemplate{Match: types.MatchField, Field: "email"}}
	got, err := NewLookupDelegate().ReadReference(ctx, byField,
		types.NewReferenceDescriptor(nil, "b@x.io"), lookup, newReader())
	require.NoError(t, err)
	assert.Equal(t, "email == b@x.io", seen)
	assert.Equal(t, types.Document{"_id": "2", "email": "b@x.io", "team": "edge"}, got)

	byExpr := &types.Property{Field: "peers", Cardinality: types.Many, Template: types.FilterTemplate{
		Match:      types.MatchExpression,
		Expression: `team == payload.team`,
	}}
	got, err = NewLookupDelegate().ReadReference(ctx, byExpr,
		types.NewReferenceDescriptor(nil, map[string]interface{}{"team": "core"}), lookup, newReader())
	require.NoError(t, err)
	assert.Equal(t, []types.Document{{"_id": "1", "email": "a@x.io", "team": "core"}}, got)

	byExprMap := &types.Property{Field: "peersByIndex", Cardinality: types.Map, Template: byExpr.Template}
	got, err = NewLookupDelegate().ReadReference(ctx, byExprMap,
		types.NewReferenceDescriptor(nil, map[string]interface{}{"team": "edge"}), lookup, newReader())
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Document{"0": {"_id": "2", "email": "b@x.io", "team": "edge"}}, got,
		"expression payloads are arguments, not key maps")
}

func TestReadReferenceErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	failing := func(context.Context, query.Query, types.ReferenceCollection) (*loader.Cursor, error) {
		return nil, boom
	}
	_, err := NewLookupDelegate().ReadReference(ctx, &types.Property{Field: "f"},
		types.NewReferenceDescriptor(nil, "1"), failing, newReader())
	assert.Same(t, boom, err, "lookup errors are returned unchanged")

	midway := func(context.Context, query.Query, types.ReferenceCollection) (*loader.Cursor, error) {
		return loader.NewCursor(func(yield func(types.Document, error) bool) {
			if yield(types.Document{"_id": "1"}, nil) {
				yield(nil, boom)
			}
		}), nil
	}
	_, err = NewLookupDelegate().ReadReference(ctx, &types.Property{Field: "f", Cardinality: types.Many},
		types.NewReferenceDescriptor(nil, []interface{}{"1", "2"}), midway, newReader())
	assert.ErrorIs(t, err, boom)

	_, err = NewLookupDelegate().ReadReference(ctx,
		&types.Property{Field: "f", Template: types.FilterTemplate{Match: types.MatchField}},
		types.NewReferenceDescriptor(nil, "1"), failingLookup(t), newReader())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewLookupDelegate().ReadReference(ctx,
		&types.Property{Field: "f", Cardinality: types.Map, KeyField: "missing"},
		types.NewReferenceDescriptor(nil, []interface{}{"1"}),
		func(context.Context, query.Query, types.ReferenceCollection) (*loader.Cursor, error) {
			return loader.Of(types.Document{"_id": "1"}), nil
		}, newReader())
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
