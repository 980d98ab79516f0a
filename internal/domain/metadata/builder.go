package metadata

import (
	"fmt"
	"strings"

	"github.com/doclayer/querymap/internal/domain"
)

// Builder assembles a Registry from declarative entity descriptions.
// Nothing is discovered by reflection; callers state names, field names
// and kinds up front and Build validates the resulting graph.
type Builder struct {
	order    []*EntityBuilder
	entities map[string]*EntityBuilder
}

// NewBuilder creates an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{entities: make(map[string]*EntityBuilder)}
}

// Entity starts (or continues) the description of an entity.
func (b *Builder) Entity(name string) *EntityBuilder {
	if eb, ok := b.entities[name]; ok {
		return eb
	}
	eb := &EntityBuilder{name: name, collection: strings.ToLower(name)}
	b.entities[name] = eb
	b.order = append(b.order, eb)
	return eb
}

// EntityBuilder describes one entity.
type EntityBuilder struct {
	name       string
	collection string
	unwrapped  bool
	properties []*Property
}

// Collection sets the store collection name (defaults to the lowercased
// entity name).
func (eb *EntityBuilder) Collection(name string) *EntityBuilder {
	eb.collection = name
	return eb
}

// Unwrapped marks the entity as a flattened value object.
func (eb *EntityBuilder) Unwrapped() *EntityBuilder {
	eb.unwrapped = true
	return eb
}

// ID declares the identifier property.
func (eb *EntityBuilder) ID(name, fieldName string, k Kind) *PropertyBuilder {
	p := eb.add(name, fieldName, k)
	p.p.id = true
	return p
}

// Field declares a plain value property.
func (eb *EntityBuilder) Field(name, fieldName string, k Kind) *PropertyBuilder {
	return eb.add(name, fieldName, k)
}

// Embedded declares a property holding another entity's document inline.
func (eb *EntityBuilder) Embedded(name, fieldName, target string) *PropertyBuilder {
	p := eb.add(name, fieldName, Document)
	p.p.target = target
	return p
}

// Reference declares a property pointing at another entity by identifier.
// The default storage form is a full reference document.
func (eb *EntityBuilder) Reference(name, fieldName, target string) *PropertyBuilder {
	p := eb.add(name, fieldName, Document)
	p.p.target = target
	p.p.reference = true
	return p
}

func (eb *EntityBuilder) add(name, fieldName string, k Kind) *PropertyBuilder {
	p := &Property{name: name, fieldName: fieldName, kind: k}
	eb.properties = append(eb.properties, p)
	return &PropertyBuilder{p: p}
}

// PropertyBuilder refines a single property declaration.
type PropertyBuilder struct {
	p *Property
}

// Map marks the property as map-valued; map keys are data and survive
// key mapping verbatim.
func (pb *PropertyBuilder) Map() *PropertyBuilder {
	pb.p.mapLike = true
	return pb
}

// Collection marks the property as collection-valued.
func (pb *PropertyBuilder) Collection() *PropertyBuilder {
	pb.p.collection = true
	return pb
}

// Unwrapped flattens the property's sub-properties into the parent
// document. An empty prefix makes the property invisible in wire keys.
func (pb *PropertyBuilder) Unwrapped(prefix string) *PropertyBuilder {
	pb.p.unwrapped = true
	pb.p.fieldName = prefix
	return pb
}

// Score marks the property as the relevance-score property.
func (pb *PropertyBuilder) Score() *PropertyBuilder {
	pb.p.score = true
	return pb
}

// WriteTarget declares an explicit kind values must be coerced to on write.
func (pb *PropertyBuilder) WriteTarget(k Kind) *PropertyBuilder {
	pb.p.hasWriteTarget = true
	pb.p.writeTarget = k
	return pb
}

// AsPointer stores the reference as a lightweight document pointer.
func (pb *PropertyBuilder) AsPointer() *PropertyBuilder {
	pb.p.docReference = true
	return pb
}

// Annotated marks the property with a generic reference annotation
// without committing to a storage form.
func (pb *PropertyBuilder) Annotated() *PropertyBuilder {
	pb.p.refAnnotated = true
	return pb
}

// Build validates the described graph and returns an immutable Registry.
func (b *Builder) Build() (*Registry, error) {
	reg := &Registry{entities: make(map[string]*Entity, len(b.order))}

	for _, eb := range b.order {
		e := &Entity{
			name:       eb.name,
			collection: eb.collection,
			unwrapped:  eb.unwrapped,
			properties: eb.properties,
			byName:     make(map[string]*Property, len(eb.properties)),
		}
		for _, p := range eb.properties {
			if p.name == "" {
				return nil, fmt.Errorf("%w: entity %s has a property without a name", domain.ErrInvalidSchema, eb.name)
			}
			if _, dup := e.byName[p.name]; dup {
				return nil, fmt.Errorf("%w: entity %s declares property %s twice", domain.ErrInvalidSchema, eb.name, p.name)
			}
			e.byName[p.name] = p
			p.owner = e
			if p.id {
				if e.id != nil {
					return nil, fmt.Errorf("%w: entity %s declares multiple id properties", domain.ErrInvalidSchema, eb.name)
				}
				e.id = p
			}
			if p.score {
				if e.score != nil {
					return nil, fmt.Errorf("%w: entity %s declares multiple score properties", domain.ErrInvalidSchema, eb.name)
				}
				e.score = p
			}
		}
		reg.entities[e.name] = e
	}

	// Target entities must exist once the whole graph is known.
	for _, eb := range b.order {
		for _, p := range eb.properties {
			if p.target == "" {
				continue
			}
			if _, ok := reg.entities[p.target]; !ok {
				return nil, fmt.Errorf("%w: property %s.%s targets unknown entity %s",
					domain.ErrInvalidSchema, eb.name, p.name, p.target)
			}
		}
	}

	return reg, nil
}
