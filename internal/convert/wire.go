package convert

import (
	"time"

	"github.com/twpayne/go-geom"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// DBRef is the heavyweight reference form understood by the store.
type DBRef struct {
	Collection string `bson:"$ref"`
	ID         any    `bson:"$id"`
	Database   string `bson:"$db,omitempty"`
}

// Wire converts domain-shaped operands into their wire representation.
// Safe for concurrent use.
type Wire struct {
	svc       *Service
	defaultID metadata.Kind
	typeKey   string
}

// WireOption customizes a Wire converter.
type WireOption func(*Wire)

// WithDefaultIDKind sets the identifier kind used when a property's own
// declared kind is unknown. Defaults to the store-native ObjectID.
func WithDefaultIDKind(k metadata.Kind) WireOption {
	return func(w *Wire) { w.defaultID = k }
}

// WithTypeKey sets the type-discriminator key. Defaults to "_type".
func WithTypeKey(key string) WireOption {
	return func(w *Wire) { w.typeKey = key }
}

// NewWire creates a wire converter on top of the scalar service.
func NewWire(svc *Service, opts ...WireOption) *Wire {
	w := &Wire{svc: svc, defaultID: metadata.ObjectID, typeKey: "_type"}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DefaultIDKind returns the fallback identifier kind.
func (w *Wire) DefaultIDKind() metadata.Kind { return w.defaultID }

// TypeKey returns the type-discriminator key.
func (w *Wire) TypeKey() string { return w.typeKey }

// IsTypeKey reports whether key is the type-discriminator key.
func (w *Wire) IsTypeKey(key string) bool { return key == w.typeKey }

// TypeRestriction builds the wire clause restricting documents to the
// given type aliases.
func (w *Wire) TypeRestriction(aliases []string) bson.E {
	in := make(bson.A, len(aliases))
	for i, a := range aliases {
		in[i] = a
	}
	return bson.E{Key: w.typeKey, Value: bson.D{{Key: "$in", Value: in}}}
}

// ConvertID coerces an identifier value to the target kind, falling back
// to the default kind when the target is open and to the unconverted
// value when no coercion applies.
func (w *Wire) ConvertID(id any, to metadata.Kind) any {
	if id == nil {
		return nil
	}
	if to == metadata.Any || to == metadata.Document {
		to = w.defaultID
	}
	if !w.svc.CanConvert(id, to) {
		return id
	}
	converted, err := w.svc.Convert(id, to)
	if err != nil {
		return id
	}
	return converted
}

// ConvertValue converts a raw scalar or list value to its wire form.
// Geometries become GeoJSON documents, times become store datetimes,
// lists convert element-wise, everything already wire-shaped passes
// through unchanged.
func (w *Wire) ConvertValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return primitive.NewDateTimeFromTime(v), nil
	case geom.T:
		return geoJSON(v)
	case bson.A:
		return w.convertSlice(v)
	case []any:
		return w.convertSlice(v)
	default:
		return value, nil
	}
}

// ConvertValueForEntity converts like ConvertValue but applies the
// entity's embedded-type information: values of unwrapped entities lose
// their type-discriminator entry, so round-trip type metadata survives
// only for non-embedded values.
func (w *Wire) ConvertValueForEntity(value any, entity *metadata.Entity) (any, error) {
	converted, err := w.ConvertValue(value)
	if err != nil {
		return nil, err
	}
	if entity == nil || !entity.IsUnwrapped() {
		return converted, nil
	}
	doc, ok := converted.(bson.D)
	if !ok {
		return converted, nil
	}
	trimmed := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if w.IsTypeKey(e.Key) {
			continue
		}
		trimmed = append(trimmed, e)
	}
	return trimmed, nil
}

func (w *Wire) convertSlice(in []any) (bson.A, error) {
	out := make(bson.A, len(in))
	for i, el := range in {
		converted, err := w.ConvertValue(el)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// ToDBRef builds the heavyweight reference form for a target entity.
func (w *Wire) ToDBRef(id any, target *metadata.Entity) DBRef {
	return DBRef{Collection: target.Collection(), ID: w.ConvertID(id, w.idKindFor(target))}
}

// ToDocumentPointer builds the lightweight pointer form: the converted
// identifier itself.
func (w *Wire) ToDocumentPointer(id any, target *metadata.Entity) any {
	return w.ConvertID(id, w.idKindFor(target))
}

func (w *Wire) idKindFor(target *metadata.Entity) metadata.Kind {
	if target != nil {
		if idProp, ok := target.IDProperty(); ok {
			return idProp.Kind()
		}
	}
	return w.defaultID
}
