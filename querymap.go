// Package querymap rewrites domain-shaped filter, sort and projection
// documents into the wire-level documents a document store understands,
// driven by declarative entity schemas: logical property names become
// stored field names, identifier values are coerced to their declared
// kinds, and reference properties turn their operands into reference
// documents.
package querymap

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/convert"
	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
	"github.com/doclayer/querymap/internal/mapping"
)

// Schema declares one mapped entity.
type Schema struct {
	// Name is the logical entity name other schemas refer to.
	Name string
	// Collection is the store collection; defaults to the lowercased name.
	Collection string
	// Unwrapped marks a value object that only appears flattened into an
	// owning document.
	Unwrapped bool

	Properties []Property
}

// Property declares one entity property.
type Property struct {
	// Name is the logical property name used in queries.
	Name string
	// Field is the stored field name; defaults to Name.
	Field string
	// Kind names the declared value kind (string, int, long, double,
	// bool, datetime, objectid, binary, decimal, geometry). Empty means
	// open.
	Kind string

	ID    bool
	Score bool
	Map   bool
	List  bool

	// Embeds names an entity stored inline; References names an entity
	// pointed at by identifier. At most one may be set.
	Embeds     string
	References string

	// DocumentPointer stores a reference as the bare target identifier
	// instead of a full reference document.
	DocumentPointer bool
	// RefAnnotation marks a generic reference annotation without
	// committing to a storage form.
	RefAnnotation bool

	// Unwrapped flattens the embedded entity's properties into the
	// parent document, prefixed with UnwrappedPrefix.
	Unwrapped       bool
	UnwrappedPrefix string

	// WriteTarget names a kind operand values are coerced to on write.
	WriteTarget string
}

// Engine maps query documents against a fixed schema set. Safe for
// concurrent use.
type Engine struct {
	registry *metadata.Registry
	mapper   *mapping.Mapper
}

type engineConfig struct {
	typeKey   string
	idDefault metadata.Kind
	log       *zap.Logger
}

// Option customizes an Engine.
type Option func(*engineConfig)

// WithTypeKey sets the type-discriminator key copied verbatim through
// mapping. Defaults to "_type".
func WithTypeKey(key string) Option {
	return func(c *engineConfig) { c.typeKey = key }
}

// WithDefaultIDKind sets the fallback identifier kind used when an
// entity declares none. Defaults to "objectid".
func WithDefaultIDKind(kind string) Option {
	return func(c *engineConfig) {
		if k, ok := metadata.ParseKind(kind); ok {
			c.idDefault = k
		}
	}
}

// WithLogger sets the diagnostic logger for unresolved paths.
func WithLogger(log *zap.Logger) Option {
	return func(c *engineConfig) { c.log = log }
}

// New builds an Engine from declarative schemas.
func New(schemas []Schema, opts ...Option) (*Engine, error) {
	cfg := engineConfig{typeKey: "_type", idDefault: metadata.ObjectID, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := metadata.NewBuilder()
	for _, s := range schemas {
		eb := b.Entity(s.Name)
		if s.Collection != "" {
			eb.Collection(s.Collection)
		}
		if s.Unwrapped {
			eb.Unwrapped()
		}
		for _, p := range s.Properties {
			if err := declare(eb, p); err != nil {
				return nil, fmt.Errorf("schema %s: %w", s.Name, err)
			}
		}
	}
	registry, err := b.Build()
	if err != nil {
		return nil, err
	}

	svc := convert.NewService()
	wire := convert.NewWire(svc,
		convert.WithDefaultIDKind(cfg.idDefault),
		convert.WithTypeKey(cfg.typeKey),
	)
	return &Engine{
		registry: registry,
		mapper:   mapping.New(registry, svc, wire, mapping.WithLogger(cfg.log)),
	}, nil
}

func declare(eb *metadata.EntityBuilder, p Property) error {
	kind := metadata.Any
	if p.Kind != "" {
		k, ok := metadata.ParseKind(p.Kind)
		if !ok {
			return fmt.Errorf("%w: property %s has unknown kind %q", domain.ErrInvalidSchema, p.Name, p.Kind)
		}
		kind = k
	}
	if p.Embeds != "" && p.References != "" {
		return fmt.Errorf("%w: property %s cannot both embed and reference", domain.ErrInvalidSchema, p.Name)
	}

	field := p.Field
	if field == "" {
		field = p.Name
	}

	var pb *metadata.PropertyBuilder
	switch {
	case p.ID:
		pb = eb.ID(p.Name, field, kind)
	case p.Embeds != "":
		pb = eb.Embedded(p.Name, field, p.Embeds)
	case p.References != "":
		pb = eb.Reference(p.Name, field, p.References)
	default:
		pb = eb.Field(p.Name, field, kind)
	}

	if p.Map {
		pb.Map()
	}
	if p.List {
		pb.Collection()
	}
	if p.Score {
		pb.Score()
	}
	if p.Unwrapped {
		pb.Unwrapped(p.UnwrappedPrefix)
	}
	if p.DocumentPointer {
		pb.AsPointer()
	}
	if p.RefAnnotation {
		pb.Annotated()
	}
	if p.WriteTarget != "" {
		k, ok := metadata.ParseKind(p.WriteTarget)
		if !ok {
			return fmt.Errorf("%w: property %s has unknown write target %q", domain.ErrInvalidSchema, p.Name, p.WriteTarget)
		}
		pb.WriteTarget(k)
	}
	return nil
}

// MapFilter rewrites a filter document against the named schema.
func (e *Engine) MapFilter(query bson.D, schema string) (bson.D, error) {
	entity, err := e.entity(schema)
	if err != nil {
		return nil, err
	}
	return e.mapper.MapFilter(query, entity)
}

// MapSort rewrites a sort document against the named schema.
func (e *Engine) MapSort(sort bson.D, schema string) (bson.D, error) {
	entity, err := e.entity(schema)
	if err != nil {
		return nil, err
	}
	return e.mapper.MapSort(sort, entity)
}

// MapProjection rewrites a projection document against the named schema.
func (e *Engine) MapProjection(fields bson.D, schema string) (bson.D, error) {
	entity, err := e.entity(schema)
	if err != nil {
		return nil, err
	}
	return e.mapper.MapProjection(fields, entity)
}

// Schemas lists the registered schema names.
func (e *Engine) Schemas() []string {
	return e.registry.Names()
}

func (e *Engine) entity(schema string) (*metadata.Entity, error) {
	entity, ok := e.registry.Resolve(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSchema, schema)
	}
	return entity, nil
}
