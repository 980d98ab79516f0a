package metadata

// Property is an immutable descriptor for one named, typed member of an Entity.
type Property struct {
	name      string
	fieldName string
	kind      Kind

	id         bool
	score      bool
	mapLike    bool
	collection bool
	unwrapped  bool

	reference    bool
	docReference bool
	refAnnotated bool

	hasWriteTarget bool
	writeTarget    Kind

	target string
	owner  *Entity
}

// Name returns the logical property name.
func (p *Property) Name() string { return p.name }

// FieldName returns the wire-level field name. Empty for unwrapped
// properties whose sub-properties flatten into the parent document.
func (p *Property) FieldName() string { return p.fieldName }

// Kind returns the declared value kind.
func (p *Property) Kind() Kind { return p.kind }

// IsID reports whether this is the owning entity's identifier property.
func (p *Property) IsID() bool { return p.id }

// IsScore reports whether this is the relevance-score property.
func (p *Property) IsScore() bool { return p.score }

// IsMap reports whether the property holds a map of values.
func (p *Property) IsMap() bool { return p.mapLike }

// IsCollection reports whether the property holds a collection of values.
func (p *Property) IsCollection() bool { return p.collection }

// IsUnwrapped reports whether the property's own sub-properties flatten
// into the parent's wire representation.
func (p *Property) IsUnwrapped() bool { return p.unwrapped }

// IsReference reports whether the property points at another entity by id.
func (p *Property) IsReference() bool { return p.reference }

// IsDocumentReference reports whether the reference is stored as a
// lightweight document pointer instead of a full reference document.
func (p *Property) IsDocumentReference() bool { return p.docReference }

// HasReferenceAnnotation reports whether the property carries a generic
// reference marker without a declared storage form.
func (p *Property) HasReferenceAnnotation() bool { return p.refAnnotated }

// HasExplicitWriteTarget reports whether values must be coerced to a
// declared target kind before any further conversion.
func (p *Property) HasExplicitWriteTarget() bool { return p.hasWriteTarget }

// WriteTarget returns the declared write-target kind.
func (p *Property) WriteTarget() Kind { return p.writeTarget }

// TargetEntity returns the name of the entity this property resolves
// into (the referenced entity for references, the embedded entity for
// document-typed properties), or "" for plain values.
func (p *Property) TargetEntity() string { return p.target }

// IsEntity reports whether the property's value type is itself an entity.
func (p *Property) IsEntity() bool { return p.target != "" }

// Owner returns the entity the property is declared on.
func (p *Property) Owner() *Entity { return p.owner }
