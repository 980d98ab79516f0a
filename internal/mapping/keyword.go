package mapping

import (
	"fmt"
	"strings"

	"github.com/doclayer/querymap/internal/domain"
)

// keyword is a single-entry operator document: an operator key paired
// with its raw operand. Pure value object.
type keyword struct {
	key   string
	value any
}

// nonReferenceKeywords never hold a reference operand.
var nonReferenceKeywords = map[string]struct{}{
	"$":      {},
	"$size":  {},
	"$slice": {},
	"$gt":    {},
	"$lt":    {},
}

// newKeyword unwraps a document with exactly one operator entry.
func newKeyword(doc any) (keyword, error) {
	entries, ok := asEntries(doc)
	if !ok {
		return keyword{}, fmt.Errorf("%w: %T", domain.ErrBadDocument, doc)
	}
	if len(entries) != 1 {
		return keyword{}, fmt.Errorf("%w: got %d entries", domain.ErrMalformedOperator, len(entries))
	}
	return keyword{key: entries[0].Key, value: entries[0].Value}, nil
}

func (k keyword) isOrNor() bool {
	return strings.EqualFold(k.key, "$or") || strings.EqualFold(k.key, "$nor")
}

func (k keyword) isExists() bool {
	return strings.EqualFold(k.key, "$exists")
}

func (k keyword) isGeometry() bool {
	return strings.EqualFold(k.key, "$geometry")
}

func (k keyword) isSample() bool {
	return strings.EqualFold(k.key, "$example")
}

func (k keyword) isJSONSchema() bool {
	return strings.EqualFold(k.key, "$jsonSchema")
}

func (k keyword) hasIterableValue() bool {
	_, ok := asIterable(k.value)
	return ok
}

// mayHoldReference reports whether the operand may denote a reference.
func (k keyword) mayHoldReference() bool {
	_, excluded := nonReferenceKeywords[k.key]
	return !excluded
}
