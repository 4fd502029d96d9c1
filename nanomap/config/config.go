// Package config holds the mapper configuration and loads it with viper from
// nanomap.yaml, NANOMAP_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/arthur-debert/nanomap/nanomap/typetag"
	"github.com/arthur-debert/nanomap/types"
)

// EnvPrefix prefixes environment overrides, e.g. NANOMAP_STORE_PATH
const EnvPrefix = "NANOMAP"

// ConfigEnv names an explicit config file, bypassing discovery
const ConfigEnv = "NANOMAP_CONFIG"

// Config configures a Mapper
type Config struct {
	// TypeKey is the document key carrying type tags
	TypeKey string `mapstructure:"type_key" yaml:"type_key"`
	// DisableTypeKey turns type metadata off entirely
	DisableTypeKey bool `mapstructure:"disable_type_key" yaml:"disable_type_key"`
	// Strict disables name-derived tags for types missing from Tags
	Strict bool `mapstructure:"strict" yaml:"strict"`

	DefaultDatabase string `mapstructure:"default_database" yaml:"default_database"`
	StorePath       string `mapstructure:"store_path" yaml:"store_path"`

	// ResolveReferences selects the default resolver; false selects the no-op one
	ResolveReferences bool `mapstructure:"resolve_references" yaml:"resolve_references"`
	Metrics           bool `mapstructure:"metrics" yaml:"metrics"`

	// Tags maps tag -> qualified Go type name
	Tags       map[string]string `mapstructure:"tags" yaml:"tags"`
	Properties []PropertySpec    `mapstructure:"properties" yaml:"properties"`
}

// PropertySpec declares one reference-bearing property
type PropertySpec struct {
	Owner       string `mapstructure:"owner" yaml:"owner"`
	Name        string `mapstructure:"name" yaml:"name"`
	Database    string `mapstructure:"database" yaml:"database,omitempty"`
	Collection  string `mapstructure:"collection" yaml:"collection"`
	Lazy        bool   `mapstructure:"lazy" yaml:"lazy,omitempty"`
	ID          bool   `mapstructure:"id" yaml:"id,omitempty"`
	Cardinality string `mapstructure:"cardinality" yaml:"cardinality,omitempty"`
	Match       string `mapstructure:"match" yaml:"match,omitempty"`
	Field       string `mapstructure:"field" yaml:"field,omitempty"`
	Expression  string `mapstructure:"expression" yaml:"expression,omitempty"`
	KeyField    string `mapstructure:"key_field" yaml:"key_field,omitempty"`
	// Target is the qualified Go type name referenced values decode into;
	// empty means raw documents
	Target string `mapstructure:"target" yaml:"target,omitempty"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		TypeKey:           types.DefaultTypeKey,
		DefaultDatabase:   "main",
		StorePath:         "nanomap.json",
		ResolveReferences: true,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("type_key", d.TypeKey)
	v.SetDefault("disable_type_key", d.DisableTypeKey)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("default_database", d.DefaultDatabase)
	v.SetDefault("store_path", d.StorePath)
	v.SetDefault("resolve_references", d.ResolveReferences)
	v.SetDefault("metrics", d.Metrics)
}

// NewViper returns a viper instance set up for config discovery. An empty
// path falls back to $NANOMAP_CONFIG, then to nanomap.yaml in the working
// directory or $HOME/.nanomap.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nanomap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nanomap")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the configuration. A missing discovered file is not an error;
// a missing explicit one is.
func Load(path string) (Config, error) {
	v := NewViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c Config) Validate() error {
	var errs []error
	if !c.DisableTypeKey && c.TypeKey == "" {
		errs = append(errs, errors.New("type_key is empty; set disable_type_key to turn tags off"))
	}
	if c.DefaultDatabase == "" {
		errs = append(errs, errors.New("default_database is required"))
	}

	seen := make(map[string]bool)
	for i, p := range c.Properties {
		key := p.Owner + "." + p.Name
		if seen[key] {
			errs = append(errs, fmt.Errorf("properties[%d]: %s declared twice", i, key))
		}
		seen[key] = true
		if err := p.validate(); err != nil {
			errs = append(errs, fmt.Errorf("properties[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func (p PropertySpec) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Collection == "" {
		return fmt.Errorf("%s: collection is required", p.Name)
	}
	if _, err := types.ParseCardinality(p.Cardinality); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	match, err := types.ParseMatchKind(p.Match)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	switch {
	case match == types.MatchField && p.Field == "":
		return fmt.Errorf("%s: match \"field\" needs field", p.Name)
	case match == types.MatchExpression && p.Expression == "":
		return fmt.Errorf("%s: match \"expression\" needs expression", p.Name)
	}
	return nil
}

// TableFile converts the tag settings to a typetag table
func (c Config) TableFile() *typetag.TableFile {
	tf := &typetag.TableFile{Strict: c.Strict, Tags: c.Tags}
	switch {
	case c.DisableTypeKey:
		empty := ""
		tf.TypeKey = &empty
	case c.TypeKey != "":
		key := c.TypeKey
		tf.TypeKey = &key
	}
	return tf
}

// Codec builds the type tag codec, resolving Tags through registry
func (c Config) Codec(registry *typetag.TypeRegistry) (*typetag.Codec, error) {
	opts, err := c.TableFile().Options(registry)
	if err != nil {
		return nil, err
	}
	return typetag.NewCodec(opts...)
}

// Property finds the declared property name of owner
func (c Config) Property(owner, name string) (PropertySpec, bool) {
	for _, p := range c.Properties {
		if p.Owner == owner && p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// Meta converts the declaration to property metadata, resolving Target
// through registry
func (p PropertySpec) Meta(registry *typetag.TypeRegistry) (*types.Property, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}
	cardinality, _ := types.ParseCardinality(p.Cardinality)
	match, _ := types.ParseMatchKind(p.Match)

	prop := &types.Property{
		Field:       p.Name,
		Cardinality: cardinality,
		Lazy:        p.Lazy,
		ID:          p.ID,
		Location:    types.ReferenceCollection{Database: p.Database, Collection: p.Collection},
		Template:    types.FilterTemplate{Match: match, Field: p.Field, Expression: p.Expression},
		KeyField:    p.KeyField,
	}
	if p.Target != "" {
		t, ok := registry.Lookup(p.Target)
		if !ok {
			return nil, fmt.Errorf("%w: property %s targets unknown type %q", types.ErrConfiguration, p.Name, p.Target)
		}
		prop.Target = t
	}
	return prop, nil
}
