package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestReferenceDescriptorUnwrap(t *testing.T) {
	owner := Document{"_id": "o", "manager": "id7"}
	desc := DescriptorFor(owner, "manager")
	if desc.Unwrap() != "id7" {
		t.Errorf("expected id7, got %v", desc.Unwrap())
	}
	if !reflect.DeepEqual(desc.Self(), owner) {
		t.Error("Self must return the owner")
	}

	nested := NewReferenceDescriptor(owner, NewReferenceDescriptor(nil, &ReferenceDescriptor{targetSource: "deep"}))
	if nested.Unwrap() != "deep" {
		t.Errorf("expected nested payload, got %v", nested.Unwrap())
	}
	if _, ok := nested.TargetSource().(ReferenceDescriptor); !ok {
		t.Error("TargetSource must not unwrap")
	}

	if !DescriptorFor(nil, "x").Payload().IsAbsent() {
		t.Error("nil owner yields an absent payload")
	}
	if !DescriptorFor(owner, "missing").Payload().IsAbsent() {
		t.Error("missing field yields an absent payload")
	}
}

func TestReferenceCollection(t *testing.T) {
	c := ReferenceCollection{Collection: "users"}
	if c.String() != "users" {
		t.Errorf("unexpected String(): %q", c.String())
	}
	resolved := c.Resolve("main")
	if resolved.String() != "main.users" {
		t.Errorf("unexpected resolved String(): %q", resolved.String())
	}
	explicit := ReferenceCollection{Database: "hr", Collection: "users"}.Resolve("main")
	if explicit.Database != "hr" {
		t.Errorf("explicit database must win, got %q", explicit.Database)
	}
}

func TestPropertyKeyFor(t *testing.T) {
	doc := Document{"_id": "u2", "name": "bo"}

	tests := []struct {
		name    string
		prop    Property
		want    string
		wantErr bool
	}{
		{name: "key field", prop: Property{KeyField: "name"}, want: "bo"},
		{name: "missing key field", prop: Property{KeyField: "email"}, wantErr: true},
		{name: "store order", want: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prop.HasKeyField(); got != (tt.prop.KeyField != "") {
				t.Errorf("HasKeyField: got %v", got)
			}
			got, err := tt.prop.KeyFor(doc, 3)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFilterTemplateTargetField(t *testing.T) {
	tests := []struct {
		tmpl FilterTemplate
		want string
	}{
		{tmpl: FilterTemplate{}, want: IDField},
		{tmpl: FilterTemplate{Match: MatchField, Field: "email"}, want: "email"},
		{tmpl: FilterTemplate{Match: MatchExpression, Expression: "true"}, want: IDField},
	}
	for _, tt := range tests {
		if got := tt.tmpl.TargetField(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.tmpl.Match, tt.want, got)
		}
	}
}

func TestParseEnums(t *testing.T) {
	for in, want := range map[string]Cardinality{"": One, "one": One, "many": Many, "map": Map} {
		got, err := ParseCardinality(in)
		if err != nil || got != want {
			t.Errorf("ParseCardinality(%q) = %v, %v", in, got, err)
		}
		if in != "" && got.String() != in {
			t.Errorf("expected String() %q, got %q", in, got.String())
		}
	}
	if _, err := ParseCardinality("lots"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	for in, want := range map[string]MatchKind{"": MatchID, "id": MatchID, "field": MatchField, "expression": MatchExpression} {
		got, err := ParseMatchKind(in)
		if err != nil || got != want {
			t.Errorf("ParseMatchKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMatchKind("regex"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
