package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

var (
	// Trailing positional placeholders stripped before path parsing:
	// ".$", ".$[...]" and ".<digits>" segments.
	positionalSegments = regexp.MustCompile(`\.\$(\[.*?\])?|\.\d+`)
	positionalOperator = regexp.MustCompile(`\$\[.*\]`)
	dotDigits          = regexp.MustCompile(`\.\d+`)
)

var defaultIDNames = []string{"id", "_id"}

const idKey = "_id"

// valueHint tells the caller how to treat an operand for this field.
type valueHint int

const (
	// hintGeneric marks an open value; no nested-document strategy applies.
	hintGeneric valueHint = iota
	// hintNestedDocument marks a literal sub-document of a known shape.
	hintNestedDocument
)

// field exposes the mapping-relevant view of one query key.
type field interface {
	name() string
	mappedKey() string
	property() *metadata.Property
	propertyEntity() *metadata.Entity
	rootEntity() *metadata.Entity
	isIDField() bool
	isAssociation() bool
	isMap() bool
	typeHint() valueHint
	unresolved() bool
	with(name string) (field, error)
}

// plainField is a field without metadata backing; the raw name maps to
// itself.
type plainField struct {
	fname string
}

func (f plainField) name() string { return f.fname }

func (f plainField) mappedKey() string {
	if f.isIDField() {
		return idKey
	}
	return f.fname
}

func (f plainField) property() *metadata.Property      { return nil }
func (f plainField) propertyEntity() *metadata.Entity  { return nil }
func (f plainField) rootEntity() *metadata.Entity      { return nil }
func (f plainField) isIDField() bool                   { return f.fname == idKey }
func (f plainField) isAssociation() bool               { return false }
func (f plainField) isMap() bool                       { return false }
func (f plainField) typeHint() valueHint               { return hintGeneric }
func (f plainField) unresolved() bool                  { return false }
func (f plainField) with(name string) (field, error)   { return plainField{fname: name}, nil }

// metadataField resolves a dotted, possibly positional name against an
// entity into a property chain.
type metadataField struct {
	fname  string
	entity *metadata.Entity
	reg    *metadata.Registry
	log    *zap.Logger

	path  []*metadata.Property
	prop  *metadata.Property
	assoc *metadata.Property
}

// newMetadataField resolves name against entity. source, when non-nil,
// is a property already known to belong to the entity; the single
// segment then resolves to it directly, bypassing name ambiguity from
// generated query types. Returns an error only for paths that traverse
// a reference into a non-identifier property.
func newMetadataField(name string, entity *metadata.Entity, reg *metadata.Registry,
	source *metadata.Property, log *zap.Logger) (*metadataField, error) {

	f := &metadataField{fname: name, entity: entity, reg: reg, log: log}

	path, err := f.resolvePath(positionalSegments.ReplaceAllString(name, ""), source)
	if err != nil {
		return nil, err
	}
	f.path = path
	if len(path) > 0 {
		f.prop = path[len(path)-1]
	} else {
		f.prop = source
	}
	f.assoc = findAssociation(path)
	return f, nil
}

func findAssociation(path []*metadata.Property) *metadata.Property {
	for _, p := range path {
		if p.IsReference() {
			return p
		}
	}
	return nil
}

func (f *metadataField) resolvePath(pathExpr string, source *metadata.Property) ([]*metadata.Property, error) {
	raw := positionalOperator.ReplaceAllString(dotDigits.ReplaceAllString(pathExpr, ""), "")

	if source != nil && source.Owner() == f.entity {
		return []*metadata.Property{source}, nil
	}

	chain := f.forName(raw)
	if chain == nil {
		return nil, nil
	}

	// Once a segment denotes a reference, everything after it must be
	// the target's identifier.
	seen := false
	for _, p := range chain {
		if p.IsReference() {
			seen = true
			continue
		}
		if seen && !p.IsID() {
			return nil, domain.NewInvalidPath(pathExpr)
		}
	}
	return chain, nil
}

// forName parses a stripped path expression into a property chain, or
// nil when it cannot be resolved.
func (f *metadataField) forName(path string) []*metadata.Property {
	// A property literally carrying the whole path as its name wins over
	// dotted traversal.
	if p, ok := f.entity.Property(path); ok {
		return []*metadata.Property{p}
	}

	chain, ok := f.walk(path)
	if ok {
		return chain
	}

	// Generated query types address identifiers as "_id" directly; retry
	// with the conventional property name.
	if strings.HasSuffix(path, "_id") {
		return f.forName(path[:len(path)-3] + "id")
	}

	f.log.Info("could not map path, a fragment may be a simple type; continuing with the raw name",
		zap.String("path", path),
		zap.String("entity", f.entity.Name()),
		zap.String("resolved", f.describePartial(path)),
	)
	return nil
}

func (f *metadataField) walk(path string) ([]*metadata.Property, bool) {
	segments := strings.Split(path, ".")
	cur := f.entity
	chain := make([]*metadata.Property, 0, len(segments))
	for _, seg := range segments {
		if cur == nil {
			return nil, false
		}
		p, ok := cur.Property(seg)
		if !ok {
			return nil, false
		}
		chain = append(chain, p)
		if target := p.TargetEntity(); target != "" {
			cur, _ = f.reg.Resolve(target)
		} else {
			cur = nil
		}
	}
	return chain, true
}

// describePartial renders the kinds of the segments that did resolve,
// for operator troubleshooting.
func (f *metadataField) describePartial(path string) string {
	var sb strings.Builder
	sb.WriteString(f.entity.Name())
	cur := f.entity
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			break
		}
		p, ok := cur.Property(seg)
		if !ok {
			break
		}
		fmt.Fprintf(&sb, " -> %s:%s", p.Name(), p.Kind())
		if target := p.TargetEntity(); target != "" {
			cur, _ = f.reg.Resolve(target)
		} else {
			cur = nil
		}
	}
	return sb.String()
}

func (f *metadataField) name() string { return f.fname }

func (f *metadataField) mappedKey() string {
	if f.path == nil {
		return f.fname
	}
	var conv keyConverter
	if f.assoc != nil {
		conv = associationConverter(f.fname, f.assoc)
	} else {
		conv = positionRetainingConverter(f.fname)
	}
	parts := make([]string, 0, len(f.path))
	for _, p := range f.path {
		segment, ok := conv(p)
		if !ok {
			break
		}
		if segment != "" {
			parts = append(parts, segment)
		}
	}
	return strings.Join(parts, ".")
}

// property returns the backing property: the chain's leaf, or the
// reference property itself when the path crosses a reference boundary
// (operators apply to the reference, not to the referenced id's type).
func (f *metadataField) property() *metadata.Property {
	if f.assoc != nil {
		return f.assoc
	}
	return f.prop
}

func (f *metadataField) propertyEntity() *metadata.Entity {
	p := f.property()
	if p == nil || p.TargetEntity() == "" {
		return nil
	}
	target, _ := f.reg.Resolve(p.TargetEntity())
	return target
}

func (f *metadataField) rootEntity() *metadata.Entity { return f.entity }

func (f *metadataField) isIDField() bool {
	if f.prop != nil {
		return f.prop.IsID()
	}
	if idProp, ok := f.entity.IDProperty(); ok {
		return f.fname == idProp.Name() || f.fname == idProp.FieldName()
	}
	for _, n := range defaultIDNames {
		if f.fname == n {
			return true
		}
	}
	return false
}

func (f *metadataField) isAssociation() bool { return f.assoc != nil }

func (f *metadataField) isMap() bool {
	p := f.property()
	return p != nil && p.IsMap()
}

func (f *metadataField) typeHint() valueHint {
	p := f.property()
	if p == nil || p.Kind() == metadata.Any {
		return hintGeneric
	}
	return hintNestedDocument
}

func (f *metadataField) unresolved() bool {
	return f.path == nil && f.prop == nil
}

func (f *metadataField) with(name string) (field, error) {
	return newMetadataField(name, f.entity, f.reg, f.prop, f.log)
}
