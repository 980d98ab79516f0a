package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// DocumentMapper rewrites query documents against entity metadata.
type DocumentMapper interface {
	MapFilter(query bson.D, entity *metadata.Entity) (bson.D, error)
	MapSort(sort bson.D, entity *metadata.Entity) (bson.D, error)
	MapProjection(fields bson.D, entity *metadata.Entity) (bson.D, error)
}

// SchemaResolver looks up registered entities by name.
type SchemaResolver interface {
	Resolve(name string) (*metadata.Entity, bool)
	Names() []string
}
