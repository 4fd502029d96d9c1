// Package storage defines the persisted layout of the document file and the
// in-process locking used around it.
package storage

import (
	"time"

	"github.com/arthur-debert/nanomap/types"
)

// FormatVersion is written into the metadata of every saved file
const FormatVersion = "1.0"

// StoreData is the complete content of a store file:
// databases -> collections -> documents in insertion order
type StoreData struct {
	Databases map[string]map[string][]types.Document `json:"databases"`
	Metadata  Metadata                               `json:"metadata"`
}

// Metadata contains storage metadata
type Metadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStoreData returns an empty data set stamped with now
func NewStoreData(now time.Time) *StoreData {
	return &StoreData{
		Databases: make(map[string]map[string][]types.Document),
		Metadata: Metadata{
			Version:   FormatVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Collection returns the documents of database.collection (nil when missing)
func (d *StoreData) Collection(database, collection string) []types.Document {
	if d.Databases == nil {
		return nil
	}
	return d.Databases[database][collection]
}

// SetCollection replaces the documents of database.collection, creating both as needed
func (d *StoreData) SetCollection(database, collection string, docs []types.Document) {
	if d.Databases == nil {
		d.Databases = make(map[string]map[string][]types.Document)
	}
	colls, ok := d.Databases[database]
	if !ok {
		colls = make(map[string][]types.Document)
		d.Databases[database] = colls
	}
	colls[collection] = docs
}
