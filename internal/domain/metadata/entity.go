package metadata

// Entity is an immutable descriptor for a domain type's persistent shape.
type Entity struct {
	name       string
	collection string
	unwrapped  bool

	properties []*Property
	byName     map[string]*Property
	id         *Property
	score      *Property
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Collection returns the store collection the entity maps to.
func (e *Entity) Collection() string { return e.collection }

// IsUnwrapped reports whether the entity only ever appears flattened
// into an owning document.
func (e *Entity) IsUnwrapped() bool { return e.unwrapped }

// Properties returns the ordered property descriptors.
func (e *Entity) Properties() []*Property { return e.properties }

// Property looks a property up by its logical name.
func (e *Entity) Property(name string) (*Property, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// IDProperty returns the identifier property, if declared.
func (e *Entity) IDProperty() (*Property, bool) {
	return e.id, e.id != nil
}

// HasScoreProperty reports whether the entity declares a relevance-score property.
func (e *Entity) HasScoreProperty() bool { return e.score != nil }

// ScoreProperty returns the relevance-score property, if declared.
func (e *Entity) ScoreProperty() (*Property, bool) {
	return e.score, e.score != nil
}
