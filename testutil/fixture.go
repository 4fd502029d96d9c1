// Package testutil loads a small, fixed document universe for tests that need
// a populated store with references between collections.
//
// The universe is an org chart: people reference their manager, their reports,
// their team and a map of mentors by role; teams reference their lead by email;
// badges live in a separate "hr" database. Fox (p6) points at a manager and a
// team that do not exist.
package testutil

import (
	_ "embed"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arthur-debert/nanomap/nanomap/store"
	"github.com/arthur-debert/nanomap/types"
)

//go:embed testdata/universe.json
var universeJSON []byte

// Database and collection names used by the universe
const (
	MainDatabase = store.DefaultDatabase
	HRDatabase   = "hr"

	People = "people"
	Teams  = "teams"
	Badges = "badges"
)

// Universe provides typed access to the fixture documents as they were stored
type Universe struct {
	Ada   types.Document // p1, heads platform, no manager
	Brook types.Document // p2, reports to Ada, manages Dee
	Cyd   types.Document // p3, two mentors
	Dee   types.Document // p4
	Eli   types.Document // p5, leads design
	Fox   types.Document // p6, dangling manager and team

	Platform types.Document // t1
	Design   types.Document // t2

	collections map[types.ReferenceCollection][]types.Document
}

type fixtureData struct {
	Databases map[string]map[string][]types.Document `json:"databases"`
}

// LoadUniverse returns a store populated with the universe. The store lives in
// a temporary directory and is closed when the test ends.
func LoadUniverse(t *testing.T) (store.Store, *Universe) {
	t.Helper()

	var fixture fixtureData
	if err := json.Unmarshal(universeJSON, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	s, err := store.New(filepath.Join(t.TempDir(), "universe.json"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	u := &Universe{collections: make(map[types.ReferenceCollection][]types.Document)}
	for _, database := range sortedKeys(fixture.Databases) {
		collections := fixture.Databases[database]
		for _, collection := range sortedKeys(collections) {
			loc := types.ReferenceCollection{Database: database, Collection: collection}
			for _, doc := range collections[collection] {
				if _, err := s.Insert(t.Context(), database, collection, doc); err != nil {
					t.Fatalf("failed to insert %s into %s: %v", doc.IDString(), loc, err)
				}
				stored, err := s.Get(t.Context(), database, collection, doc.IDString())
				if err != nil {
					t.Fatalf("failed to read back %s from %s: %v", doc.IDString(), loc, err)
				}
				u.collections[loc] = append(u.collections[loc], stored)
			}
		}
	}

	u.Ada = u.mustFind(t, People, "p1")
	u.Brook = u.mustFind(t, People, "p2")
	u.Cyd = u.mustFind(t, People, "p3")
	u.Dee = u.mustFind(t, People, "p4")
	u.Eli = u.mustFind(t, People, "p5")
	u.Fox = u.mustFind(t, People, "p6")
	u.Platform = u.mustFind(t, Teams, "t1")
	u.Design = u.mustFind(t, Teams, "t2")

	return s, u
}

func (u *Universe) mustFind(t *testing.T, collection, id string) types.Document {
	t.Helper()
	doc, ok := u.Find(types.ReferenceCollection{Database: MainDatabase, Collection: collection}, id)
	if !ok {
		t.Fatalf("fixture has no %s/%s", collection, id)
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Collection returns the documents of loc in store order
func (u *Universe) Collection(loc types.ReferenceCollection) []types.Document {
	return u.collections[loc.Resolve(MainDatabase)]
}

// Find returns the document of loc with the given id
func (u *Universe) Find(loc types.ReferenceCollection, id string) (types.Document, bool) {
	for _, doc := range u.Collection(loc) {
		if doc.IDString() == id {
			return doc, true
		}
	}
	return nil, false
}

// ReportsOf returns the people whose manager is id, in store order
func (u *Universe) ReportsOf(id string) []types.Document {
	var out []types.Document
	for _, doc := range u.Collection(types.ReferenceCollection{Collection: People}) {
		if doc["manager"] == id {
			out = append(out, doc)
		}
	}
	return out
}

// Properties returns reference metadata for every reference field in the
// universe, keyed by owner collection and field name ("people.manager").
// Targets are left nil so references resolve to raw documents.
func Properties() map[string]*types.Property {
	people := types.ReferenceCollection{Collection: People}
	return map[string]*types.Property{
		"people.manager": {Field: "manager", Lazy: true, Location: people},
		"people.reports": {Field: "reports", Cardinality: types.Many, Location: people},
		"people.team":    {Field: "team", Location: types.ReferenceCollection{Collection: Teams}},
		"people.mentors": {Field: "mentors", Cardinality: types.Map, Location: people},
		"people.badge": {
			Field:    "badge",
			Lazy:     true,
			Location: types.ReferenceCollection{Database: HRDatabase, Collection: Badges},
		},
		"teams.lead": {
			Field:    "lead",
			Location: people,
			Template: types.FilterTemplate{Match: types.MatchField, Field: "email"},
		},
	}
}
