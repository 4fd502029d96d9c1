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

func TestFriendsEagerCollection(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{docs: userDocs()}
	r := NewDefaultResolver(l)
	prop := &types.Property{Field: "friends", Cardinality: types.Many, Target: userType, Location: users}
	owner := types.Document{"_id": "me", "friends": []interface{}{"u1", "u2"}}

	got, err := r.ResolveReference(ctx, prop, owner, NewLookupDelegate(), newReader())
	require.NoError(t, err)

	one, many := l.calls()
	assert.Equal(t, int32(0), one)
	assert.Equal(t, int32(1), many)
	assert.Equal(t, []string{"_id in [u1 u2]"}, l.queries)
	assert.Equal(t, []user{{ID: "u1", Name: "ann"}, {ID: "u2", Name: "bo"}}, got)
}

func TestManagerLazySingular(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{docs: userDocs()}
	r := NewDefaultResolver(l)
	prop := &types.Property{Field: "manager", Lazy: true, Target: userPtrType, Location: users}
	owner := types.Document{"_id": "me", "manager": "id7"}

	got, err := r.ResolveReference(ctx, prop, owner, NewLookupDelegate(), newReader())
	require.NoError(t, err)
	lazy, ok := got.(*LazyReference)
	require.True(t, ok, "lazy property must resolve to a proxy, got %T", got)

	one, many := l.calls()
	assert.Zero(t, one+many, "no fetch before Target")
	assert.Equal(t, Unresolved, lazy.State())

	identity, ok := lazy.Identity()
	require.True(t, ok)
	assert.Equal(t, types.ReferenceLiteral{Collection: "users", Payload: "id7"}, identity)

	target, err := lazy.Target(ctx)
	require.NoError(t, err)
	assert.Equal(t, &user{ID: "id7", Name: "boss"}, target)

	one, many = l.calls()
	assert.Equal(t, int32(1), one)
	assert.Equal(t, int32(0), many)
	assert.Equal(t, []string{"_id == id7"}, l.queries)
}

func TestCardinalityRouting(t *testing.T) {
	tests := []struct {
		name        string
		cardinality types.Cardinality
		payload     interface{}
		wantOne     int32
		wantMany    int32
	}{
		{name: "singular", cardinality: types.One, payload: "u1", wantOne: 1},
		{name: "collection", cardinality: types.Many, payload: []interface{}{"u1"}, wantMany: 1},
		{name: "map", cardinality: types.Map, payload: map[string]interface{}{"a": "u1"}, wantMany: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &countingLoader{docs: userDocs()}
			prop := &types.Property{Field: "ref", Cardinality: tt.cardinality, Location: users}
			_, err := NewDefaultResolver(l).ResolveReference(context.Background(), prop,
				types.Document{"ref": tt.payload}, NewLookupDelegate(), newReader())
			require.NoError(t, err)

			one, many := l.calls()
			assert.Equal(t, tt.wantOne, one)
			assert.Equal(t, tt.wantMany, many)
		})
	}
}

func TestSingularMissingTarget(t *testing.T) {
	l := &countingLoader{docs: userDocs()}
	prop := &types.Property{Field: "manager", Target: userType, Location: users}

	got, err := NewDefaultResolver(l).ResolveReference(context.Background(), prop,
		types.Document{"manager": "nobody"}, NewLookupDelegate(), newReader())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEagerFailurePropagates(t *testing.T) {
	boom := errors.New("store down")
	l := &countingLoader{err: boom}
	prop := &types.Property{Field: "friends", Cardinality: types.Many, Location: users}

	_, err := NewDefaultResolver(l).ResolveReference(context.Background(), prop,
		types.Document{"friends": []interface{}{"u1"}}, NewLookupDelegate(), newReader())
	assert.Same(t, boom, err)
}

func TestResolverFetch(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{docs: userDocs()}
	r := NewDefaultResolver(l)

	cursor, err := r.Fetch(ctx, &types.Property{Field: "boss", Location: users}, query.ByID("id7"))
	require.NoError(t, err)
	docs, err := cursor.Collect()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "id7", docs[0].IDString())

	cursor, err = r.Fetch(ctx, &types.Property{Field: "boss", Location: users}, query.ByID("none"))
	require.NoError(t, err)
	docs, err = cursor.Collect()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNoOpResolver(t *testing.T) {
	ctx := context.Background()
	var r Resolver = NoOpResolver{}
	prop := &types.Property{Field: "manager", Location: users}

	got, err := r.ResolveReference(ctx, prop, types.Document{"manager": "id7"}, NewLookupDelegate(), newReader())
	require.NoError(t, err)
	assert.Nil(t, got)

	cursor, err := r.Fetch(ctx, prop, query.ByID("id7"))
	assert.Nil(t, cursor)
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

func TestResolverAgainstStoreLoader(t *testing.T) {
	ctx := context.Background()
	mem := &memStore{docs: userDocs()}
	r := NewDefaultResolver(loader.NewStoreLoader(mem, loader.WithDefaultDatabase("app")))
	prop := &types.Property{Field: "team", Cardinality: types.Many, Target: userType, Location: users}

	got, err := r.ResolveReference(ctx, prop, types.Document{"team": []interface{}{"u3", "u1"}},
		NewLookupDelegate(), newReader())
	require.NoError(t, err)
	assert.Equal(t, []user{{ID: "u1", Name: "ann"}, {ID: "u3", Name: "cy"}}, got, "store order wins")
	assert.Equal(t, "app", mem.database)
}
