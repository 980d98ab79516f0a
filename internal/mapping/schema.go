package mapping

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// SchemaMapper maps a $jsonSchema operator document.
type SchemaMapper interface {
	MapSchema(schema bson.D, entity *metadata.Entity) (bson.D, error)
}

// schemaMapper is the default schema sibling: member names inside
// "properties" and "required" translate to wire field names, recursing
// into entity-typed members; all other schema keywords pass through.
type schemaMapper struct {
	m *Mapper
}

func (sm *schemaMapper) MapSchema(schema bson.D, entity *metadata.Entity) (bson.D, error) {
	result := make(bson.D, 0, len(schema))
	for _, e := range schema {
		if e.Key != "$jsonSchema" {
			result = append(result, e)
			continue
		}
		body, err := sm.mapBody(e.Value, entity)
		if err != nil {
			return nil, err
		}
		result = append(result, bson.E{Key: e.Key, Value: body})
	}
	return result, nil
}

func (sm *schemaMapper) mapBody(value any, entity *metadata.Entity) (any, error) {
	entries, ok := asEntries(value)
	if !ok || entity == nil {
		return value, nil
	}

	result := make(bson.D, 0, len(entries))
	for _, e := range entries {
		switch e.Key {
		case "properties":
			props, err := sm.mapProperties(e.Value, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, bson.E{Key: e.Key, Value: props})
		case "required":
			result = append(result, bson.E{Key: e.Key, Value: sm.mapRequired(e.Value, entity)})
		default:
			result = append(result, e)
		}
	}
	return result, nil
}

func (sm *schemaMapper) mapProperties(value any, entity *metadata.Entity) (any, error) {
	entries, ok := asEntries(value)
	if !ok {
		return value, nil
	}

	result := make(bson.D, 0, len(entries))
	for _, e := range entries {
		key := e.Key
		var target *metadata.Entity
		if p, ok := entity.Property(e.Key); ok {
			if p.FieldName() != "" {
				key = p.FieldName()
			}
			if p.IsEntity() {
				target, _ = sm.m.registry.Resolve(p.TargetEntity())
			}
		}
		body, err := sm.mapBody(e.Value, target)
		if err != nil {
			return nil, err
		}
		result = append(result, bson.E{Key: key, Value: body})
	}
	return result, nil
}

func (sm *schemaMapper) mapRequired(value any, entity *metadata.Entity) any {
	elements, ok := asIterable(value)
	if !ok {
		return value
	}
	result := make(bson.A, len(elements))
	for i, el := range elements {
		name, ok := el.(string)
		if !ok {
			result[i] = el
			continue
		}
		if p, ok := entity.Property(name); ok && p.FieldName() != "" {
			result[i] = p.FieldName()
			continue
		}
		result[i] = name
	}
	return result
}
