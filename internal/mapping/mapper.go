// Package mapping rewrites domain-shaped filter, sort and projection
// documents into the wire-level documents understood by the store,
// using declarative entity metadata. Mapping is pure: no state is
// mutated, and a single Mapper may be shared across goroutines.
package mapping

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/convert"
	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

// RestrictedTypesKey is the pseudo-key carrying type-restriction
// aliases; it is translated into a type-discriminator clause instead of
// being copied.
const RestrictedTypesKey = "_$restricted_types"

var metaTextScore = bson.D{{Key: "$meta", Value: "textScore"}}

// Expression is a typed query-expression wrapper that renders itself as
// a document before mapping.
type Expression interface {
	ToDocument() bson.D
}

// Example marks a probe document to be mapped by example.
type Example struct {
	Probe bson.D
}

type metaMapping int

const (
	metaIgnore metaMapping = iota
	metaWhenPresent
	metaForce
)

// Mapper is the query-document mapping engine.
type Mapper struct {
	registry *metadata.Registry
	svc      *convert.Service
	wire     *convert.Wire
	examples ExampleMapper
	schemas  SchemaMapper
	log      *zap.Logger
}

// Option customizes a Mapper.
type Option func(*Mapper)

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Mapper) { m.log = log }
}

// WithExampleMapper replaces the by-example sibling mapper.
func WithExampleMapper(em ExampleMapper) Option {
	return func(m *Mapper) { m.examples = em }
}

// WithSchemaMapper replaces the schema-document sibling mapper.
func WithSchemaMapper(sm SchemaMapper) Option {
	return func(m *Mapper) { m.schemas = sm }
}

// New creates a Mapper over the given metadata registry and converters.
func New(registry *metadata.Registry, svc *convert.Service, wire *convert.Wire, opts ...Option) *Mapper {
	m := &Mapper{
		registry: registry,
		svc:      svc,
		wire:     wire,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.examples == nil {
		m.examples = &exampleMapper{m: m}
	}
	if m.schemas == nil {
		m.schemas = &schemaMapper{m: m}
	}
	return m
}

// MapFilter rewrites a filter document against the entity's metadata.
// A nil entity maps keys verbatim while still expanding operators.
func (m *Mapper) MapFilter(query bson.D, entity *metadata.Entity) (bson.D, error) {
	return m.mapObject(query, entity)
}

// MapSort rewrites a sort document. When the entity declares a
// relevance-score property, its $meta clause is injected only if the
// caller already referenced that field.
func (m *Mapper) MapSort(sort bson.D, entity *metadata.Entity) (bson.D, error) {
	if len(sort) == 0 {
		return bson.D{}, nil
	}
	mapped, err := m.mapFieldNames(sort, entity)
	if err != nil {
		return nil, err
	}
	return m.mapMetaAttributes(mapped, entity, metaWhenPresent), nil
}

// MapProjection rewrites a projection document. A declared
// relevance-score property is always surfaced, whether or not the
// caller named it.
func (m *Mapper) MapProjection(fields bson.D, entity *metadata.Entity) (bson.D, error) {
	mapped, err := m.mapFieldNames(fields, entity)
	if err != nil {
		return nil, err
	}
	return m.mapMetaAttributes(mapped, entity, metaForce), nil
}

func (m *Mapper) mapObject(query any, entity *metadata.Entity) (bson.D, error) {
	if kw, ok := m.nestedKeyword(query); ok {
		return m.mapKeyword(kw, entity)
	}

	entries, ok := asEntries(query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", domain.ErrBadDocument, query)
	}

	result := make(bson.D, 0, len(entries))
	for _, entry := range entries {
		key, value := entry.Key, entry.Value

		if key == RestrictedTypesKey {
			aliases, err := typeAliases(value)
			if err != nil {
				return nil, err
			}
			result = append(result, m.wire.TypeRestriction(aliases))
			continue
		}

		if m.wire.IsTypeKey(key) {
			result = append(result, bson.E{Key: key, Value: value})
			continue
		}

		if isOperatorKey(key) {
			mapped, err := m.mapKeyword(keyword{key: key, value: value}, entity)
			if err != nil {
				return nil, err
			}
			result = append(result, mapped...)
			continue
		}

		f, err := m.createField(entity, key)
		if err != nil {
			return nil, err
		}

		if f.unresolved() && isDocumentValue(value) {
			// The entry has most likely been mapped already; keep it.
			result = append(result, bson.E{Key: key, Value: value})
			continue
		}

		if p := f.property(); p != nil && p.IsUnwrapped() {
			mapped, err := m.mappedValue(f, value)
			if err != nil {
				return nil, err
			}
			nested, ok := asEntries(mapped)
			if ok && f.mappedKey() == "" {
				result = append(result, nested...)
			} else {
				result = append(result, bson.E{Key: f.mappedKey(), Value: mapped})
			}
			continue
		}

		mappedKey, mappedVal, err := m.mappedEntry(f, value)
		if err != nil {
			return nil, err
		}
		result = append(result, bson.E{Key: mappedKey, Value: mappedVal})
	}

	return result, nil
}

// mappedEntry extracts the mapped key/value pair for a field, taking
// nested operator documents into account.
func (m *Mapper) mappedEntry(f field, rawValue any) (string, any, error) {
	key := f.mappedKey()

	if expr, ok := rawValue.(Expression); ok {
		mapped, err := m.mapObject(expr.ToDocument(), f.rootEntity())
		return key, mapped, err
	}

	if kw, ok := m.nestedKeyword(rawValue); ok && !f.isIDField() {
		value, err := m.mapKeywordForField(f, kw)
		return key, value, err
	}

	value, err := m.mappedValue(f, rawValue)
	return key, value, err
}

func (m *Mapper) createField(entity *metadata.Entity, key string) (field, error) {
	if entity == nil {
		return plainField{fname: key}, nil
	}
	if key == idKey {
		idProp, _ := entity.IDProperty()
		return newMetadataField(key, entity, m.registry, idProp, m.log)
	}
	return newMetadataField(key, entity, m.registry, nil, m.log)
}

// mapKeyword maps an operator document's operand against the entity.
func (m *Mapper) mapKeyword(kw keyword, entity *metadata.Entity) (bson.D, error) {
	if kw.isOrNor() || (kw.hasIterableValue() && !kw.isGeometry()) {
		conditions, _ := asIterable(kw.value)
		mapped := make(bson.A, 0, len(conditions))
		for _, condition := range conditions {
			if isDocumentValue(condition) {
				doc, err := m.mapObject(condition, entity)
				if err != nil {
					return nil, err
				}
				mapped = append(mapped, doc)
				continue
			}
			converted, err := m.convertSimpleOrDocument(condition, entity)
			if err != nil {
				return nil, err
			}
			mapped = append(mapped, converted)
		}
		return bson.D{{Key: kw.key, Value: mapped}}, nil
	}

	if kw.isSample() {
		return m.examples.MapExample(kw.value, entity)
	}

	if kw.isJSONSchema() {
		return m.schemas.MapSchema(bson.D{{Key: kw.key, Value: kw.value}}, entity)
	}

	converted, err := m.convertSimpleOrDocument(kw.value, entity)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: kw.key, Value: converted}}, nil
}

// mapKeywordForField maps an operator considered a criteria for the
// given field.
func (m *Mapper) mapKeywordForField(f field, kw keyword) (any, error) {
	needsAssociation := f.isAssociation() && !kw.isExists() && kw.mayHoldReference()

	var converted any
	var err error
	if needsAssociation {
		converted, err = m.convertAssociation(kw.value, f.property())
	} else {
		var sub field
		sub, err = f.with(kw.key)
		if err != nil {
			return nil, err
		}
		converted, err = m.mappedValue(sub, kw.value)
	}
	if err != nil {
		return nil, err
	}

	if kw.isSample() {
		if doc, ok := converted.(bson.D); ok {
			return doc, nil
		}
	}
	return bson.D{{Key: kw.key, Value: converted}}, nil
}

// mappedValue converts a raw operand for the given field.
func (m *Mapper) mappedValue(f field, source any) (any, error) {
	value, err := m.applyWriteTarget(f, source)
	if err != nil {
		return nil, err
	}

	if f.isIDField() && !f.isAssociation() {
		return m.mappedIDValue(f, value)
	}

	if value == nil {
		return nil, nil
	}

	if kw, ok := m.nestedKeyword(value); ok {
		return m.mapKeyword(kw, f.propertyEntity())
	}

	if m.needsAssociationConversion(f, value) {
		return m.convertAssociation(value, f.property())
	}

	return m.convertSimpleOrDocument(value, f.propertyEntity())
}

// mappedIDValue handles identifier operands: $in/$nin arrays convert
// element-wise to the id kind, $ne converts its single operand, other
// documents re-enter full mapping, bare values convert directly.
func (m *Mapper) mappedIDValue(f field, value any) (any, error) {
	entries, ok := asEntries(value)
	if !ok {
		return m.wire.ConvertID(value, m.idKindFor(f)), nil
	}

	inKey := ""
	if docContains(entries, "$in") {
		inKey = "$in"
	} else if docContains(entries, "$nin") {
		inKey = "$nin"
	}

	if inKey != "" {
		result := make(bson.D, 0, len(entries))
		for _, e := range entries {
			if e.Key != inKey {
				result = append(result, e)
				continue
			}
			elements, ok := asIterable(e.Value)
			if !ok {
				return nil, fmt.Errorf("%w: %s needs an array operand", domain.ErrBadDocument, inKey)
			}
			ids := make(bson.A, len(elements))
			for i, id := range elements {
				ids[i] = m.wire.ConvertID(id, m.idKindFor(f))
			}
			result = append(result, bson.E{Key: inKey, Value: ids})
		}
		return result, nil
	}

	if ne, ok := docGet(entries, "$ne"); ok {
		result := make(bson.D, len(entries))
		copy(result, entries)
		return docSet(result, "$ne", m.wire.ConvertID(ne, m.idKindFor(f))), nil
	}

	return m.mapObject(entries, nil)
}

func (m *Mapper) idKindFor(f field) metadata.Kind {
	if p := f.property(); p != nil && p.IsID() {
		return p.Kind()
	}
	return m.wire.DefaultIDKind()
}

// applyWriteTarget coerces the value to the property's declared write
// target, element-wise for collection operands.
func (m *Mapper) applyWriteTarget(f field, value any) (any, error) {
	p := f.property()
	if value == nil || p == nil || !p.HasExplicitWriteTarget() {
		return value, nil
	}

	target := p.WriteTarget()
	if elements, ok := asIterable(value); ok {
		converted := make(bson.A, len(elements))
		for i, el := range elements {
			converted[i] = m.coerce(el, target)
		}
		return converted, nil
	}
	return m.coerce(value, target), nil
}

func (m *Mapper) coerce(value any, target metadata.Kind) any {
	if !m.svc.CanConvert(value, target) {
		return value
	}
	converted, err := m.svc.Convert(value, target)
	if err != nil {
		return value
	}
	return converted
}

// needsAssociationConversion reports whether the field is a reference
// whose operand must become a reference representation. The operand
// qualifies when it is already reference-shaped or when it looks like
// the target's identifier; plain exclusion markers (the int 0 of a
// field exclusion) never qualify.
func (m *Mapper) needsAssociationConversion(f field, value any) bool {
	if value == nil || !f.isAssociation() {
		return false
	}
	if _, ok := value.(convert.DBRef); ok {
		return true
	}
	target := f.propertyEntity()
	if target == nil {
		return false
	}
	idProp, ok := target.IDProperty()
	if !ok {
		return false
	}
	return valueMatchesKind(value, idProp.Kind())
}

// convertAssociation converts an operand for a reference property into
// its reference representation.
func (m *Mapper) convertAssociation(source any, prop *metadata.Property) (any, error) {
	if prop == nil || source == nil {
		return source, nil
	}

	if ref, ok := source.(convert.DBRef); ok {
		return convert.DBRef{
			Collection: ref.Collection,
			ID:         m.wire.ConvertID(ref.ID, m.wire.DefaultIDKind()),
			Database:   ref.Database,
		}, nil
	}

	if prop.IsMap() {
		if entries, ok := asEntries(source); ok {
			result := make(bson.D, 0, len(entries))
			for _, e := range entries {
				ref, err := m.createReference(e.Value, prop)
				if err != nil {
					return nil, err
				}
				result = append(result, bson.E{Key: e.Key, Value: ref})
			}
			return result, nil
		}
	}

	if isDocumentValue(source) {
		return source, nil
	}

	if elements, ok := asIterable(source); ok {
		result := make(bson.A, len(elements))
		for i, el := range elements {
			ref, err := m.createReference(el, prop)
			if err != nil {
				return nil, err
			}
			result[i] = ref
		}
		return result, nil
	}

	return m.createReference(source, prop)
}

// createReference builds either the lightweight document-pointer form or
// the heavyweight native reference, depending on the property's flags.
func (m *Mapper) createReference(source any, prop *metadata.Property) (any, error) {
	if ref, ok := source.(convert.DBRef); ok {
		return ref, nil
	}

	target, _ := m.registry.Resolve(prop.TargetEntity())
	if target == nil {
		return nil, fmt.Errorf("%w: reference property %q has no target entity", domain.ErrInvalidSchema, prop.Name())
	}

	if prop.IsDocumentReference() || prop.HasReferenceAnnotation() {
		return m.wire.ToDocumentPointer(source, target), nil
	}
	return m.wire.ToDBRef(source, target), nil
}

// convertSimpleOrDocument re-enters mapping for structured values and
// hands everything else to the wire converter.
func (m *Mapper) convertSimpleOrDocument(source any, entity *metadata.Entity) (any, error) {
	if ex, ok := source.(Example); ok {
		return m.examples.MapExample(ex.Probe, entity)
	}

	if elements, ok := asIterable(source); ok {
		result := make(bson.A, len(elements))
		for i, el := range elements {
			converted, err := m.convertSimpleOrDocument(el, entity)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	}

	if isDocumentValue(source) {
		return m.mapObject(source, entity)
	}

	return m.wire.ConvertValueForEntity(source, entity)
}

func (m *Mapper) nestedKeyword(candidate any) (keyword, bool) {
	entries, ok := asEntries(candidate)
	if !ok || len(entries) != 1 || !isOperatorKey(entries[0].Key) {
		return keyword{}, false
	}
	kw, err := newKeyword(entries)
	if err != nil {
		return keyword{}, false
	}
	return kw, true
}

// mapFieldNames translates every key of a sort/projection document to
// its wire field name, expanding unwrapped properties into their
// component paths first.
func (m *Mapper) mapFieldNames(doc bson.D, entity *metadata.Entity) (bson.D, error) {
	if len(doc) == 0 {
		return bson.D{}, nil
	}

	target := make(bson.D, 0, len(doc))
	for _, e := range m.expandUnwrapped(doc, entity) {
		f, err := m.createField(entity, e.Key)
		if err != nil {
			return nil, err
		}
		if p := f.property(); p != nil && p.IsUnwrapped() {
			continue
		}
		target = append(target, bson.E{Key: f.mappedKey(), Value: e.Value})
	}
	return target, nil
}

// expandUnwrapped replaces entries naming an unwrapped entity property
// with one entry per component sub-property path.
func (m *Mapper) expandUnwrapped(doc bson.D, entity *metadata.Entity) bson.D {
	if len(doc) == 0 || entity == nil {
		return doc
	}

	target := make(bson.D, 0, len(doc))
	for _, e := range doc {
		f, err := m.createField(entity, e.Key)
		mf, _ := f.(*metadataField)
		if err != nil || mf == nil || len(mf.path) == 0 {
			target = append(target, e)
			continue
		}

		leaf := mf.path[len(mf.path)-1]
		if !leaf.IsUnwrapped() || !leaf.IsEntity() {
			target = append(target, e)
			continue
		}

		unwrappedEntity, ok := m.registry.Resolve(leaf.TargetEntity())
		if !ok {
			target = append(target, e)
			continue
		}

		names := make([]string, len(mf.path))
		for i, p := range mf.path {
			names[i] = p.Name()
		}
		prefix := strings.Join(names, ".")
		for _, sub := range unwrappedEntity.Properties() {
			target = append(target, bson.E{Key: prefix + "." + sub.Name(), Value: e.Value})
		}
	}
	return target
}

func (m *Mapper) mapMetaAttributes(doc bson.D, entity *metadata.Entity, mode metaMapping) bson.D {
	if entity == nil || mode == metaIgnore || !entity.HasScoreProperty() {
		return doc
	}
	score, _ := entity.ScoreProperty()
	if mode == metaForce || docContains(doc, score.FieldName()) {
		doc = docSet(doc, score.FieldName(), metaTextScore)
	}
	return doc
}

func typeAliases(value any) ([]string, error) {
	if s, ok := value.(string); ok {
		return []string{s}, nil
	}
	if ss, ok := value.([]string); ok {
		return ss, nil
	}
	elements, ok := asIterable(value)
	if !ok {
		return nil, fmt.Errorf("%w: restricted types need a string list", domain.ErrBadDocument)
	}
	aliases := make([]string, len(elements))
	for i, el := range elements {
		s, ok := el.(string)
		if !ok {
			return nil, fmt.Errorf("%w: restricted type alias %T is not a string", domain.ErrBadDocument, el)
		}
		aliases[i] = s
	}
	return aliases, nil
}
