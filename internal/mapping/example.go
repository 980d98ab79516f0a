package mapping

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

// ExampleMapper maps a probe document supplied for query-by-example.
type ExampleMapper interface {
	MapExample(probe any, entity *metadata.Entity) (bson.D, error)
}

// exampleMapper is the default by-example sibling: probe keys map to
// wire field names and type-discriminator entries are dropped, since a
// probe constrains values, not stored types.
type exampleMapper struct {
	m *Mapper
}

func (em *exampleMapper) MapExample(probe any, entity *metadata.Entity) (bson.D, error) {
	entries, ok := asEntries(probe)
	if !ok {
		return nil, fmt.Errorf("%w: example probe must be a document", domain.ErrBadDocument)
	}

	mapped, err := em.m.mapObject(entries, entity)
	if err != nil {
		return nil, err
	}

	result := make(bson.D, 0, len(mapped))
	for _, e := range mapped {
		if em.m.wire.IsTypeKey(e.Key) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}
