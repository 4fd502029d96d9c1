package types

// ReferenceDescriptor pairs an owning value with the raw payload found at one of
// its reference-bearing fields. It is immutable once constructed.
type ReferenceDescriptor struct {
	self         interface{}
	targetSource interface{}
}

// NewReferenceDescriptor creates a descriptor for the payload found on self
func NewReferenceDescriptor(self, targetSource interface{}) ReferenceDescriptor {
	return ReferenceDescriptor{self: self, targetSource: targetSource}
}

// DescriptorFor builds the descriptor for a named field of a document
func DescriptorFor(owner Document, field string) ReferenceDescriptor {
	var source interface{}
	if owner != nil {
		source = owner[field]
	}
	return NewReferenceDescriptor(owner, source)
}

// Self returns the owning value
func (r ReferenceDescriptor) Self() interface{} { return r.self }

// TargetSource returns the raw payload as stored, without unwrapping
func (r ReferenceDescriptor) TargetSource() interface{} { return r.targetSource }

// Unwrap returns the innermost payload, following nested descriptors
func (r ReferenceDescriptor) Unwrap() interface{} {
	source := r.targetSource
	for {
		switch inner := source.(type) {
		case ReferenceDescriptor:
			source = inner.targetSource
		case *ReferenceDescriptor:
			if inner == nil {
				return nil
			}
			source = inner.targetSource
		default:
			return source
		}
	}
}

// Payload returns the unwrapped payload as a classified Value
func (r ReferenceDescriptor) Payload() Value {
	return ValueOf(r.Unwrap())
}

// ReferenceCollection is the physical location a reference resolves against
type ReferenceCollection struct {
	// Database is optional; empty means the caller's default database
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection" json:"collection"`
}

// Resolve fills in the default database when none is set
func (c ReferenceCollection) Resolve(defaultDatabase string) ReferenceCollection {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	return c
}

// String renders "database.collection", or just the collection without a database
func (c ReferenceCollection) String() string {
	if c.Database == "" {
		return c.Collection
	}
	return c.Database + "." + c.Collection
}

// ReferenceLiteral is the pointer identity of an unresolved reference
type ReferenceLiteral struct {
	Database   string      `json:"database,omitempty"`
	Collection string      `json:"collection"`
	Payload    interface{} `json:"payload"`
}
