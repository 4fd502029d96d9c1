package typetag

import (
	"fmt"
	"io"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/nanomap/types"
)

// TableFile is the YAML layout of a tag table:
//
//	type_key: _class
//	strict: true
//	tags:
//	  user: github.com/acme/app/model.User
type TableFile struct {
	TypeKey *string           `yaml:"type_key,omitempty"`
	Strict  bool              `yaml:"strict"`
	Tags    map[string]string `yaml:"tags"`
}

// LoadTableFile decodes a YAML tag table
func LoadTableFile(r io.Reader) (*TableFile, error) {
	var tf TableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse tag table: %w", err)
	}
	return &tf, nil
}

// ResolveTable turns tag -> qualified type name entries into a type -> tag
// table using registry. Unknown type names and types listed under two tags
// are configuration errors.
func ResolveTable(entries map[string]string, registry *TypeRegistry) (map[reflect.Type]string, error) {
	tags := make([]string, 0, len(entries))
	for tag := range entries {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	table := make(map[reflect.Type]string, len(entries))
	for _, tag := range tags {
		name := entries[tag]
		t, ok := registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: tag %q refers to unknown type %q", types.ErrConfiguration, tag, name)
		}
		if existing, dup := table[t]; dup {
			return nil, fmt.Errorf("%w: type %s is mapped to both %q and %q", types.ErrConfiguration, t, existing, tag)
		}
		table[t] = tag
	}
	return table, nil
}

// Options converts the file into codec options
func (tf *TableFile) Options(registry *TypeRegistry) ([]Option, error) {
	table, err := ResolveTable(tf.Tags, registry)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithTable(table), WithRegistry(registry), WithStrict(tf.Strict)}
	if tf.TypeKey != nil {
		if *tf.TypeKey == "" {
			opts = append(opts, WithoutTypeKey())
		} else {
			opts = append(opts, WithTypeKey(*tf.TypeKey))
		}
	}
	return opts, nil
}

// Validate checks the table without resolving type names: tags and type
// names must be non-empty and no type name may appear under two tags
func (tf *TableFile) Validate() error {
	tags := make([]string, 0, len(tf.Tags))
	for tag := range tf.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	owners := make(map[string]string, len(tags))
	for _, tag := range tags {
		name := tf.Tags[tag]
		switch {
		case tag == "":
			return fmt.Errorf("%w: %w for type %q", types.ErrConfiguration, ErrEmptyTag, name)
		case name == "":
			return fmt.Errorf("%w: tag %q names no type", types.ErrConfiguration, tag)
		}
		if first, dup := owners[name]; dup {
			return fmt.Errorf("%w: type %q is mapped to both %q and %q", types.ErrConfiguration, name, first, tag)
		}
		owners[name] = tag
	}
	return nil
}
