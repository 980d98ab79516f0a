package mapping

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// valueMatchesKind reports whether a run-time value already is of the
// declared kind (no coercion considered).
func valueMatchesKind(v any, k metadata.Kind) bool {
	switch k {
	case metadata.Any:
		return true
	case metadata.String:
		_, ok := v.(string)
		return ok
	case metadata.ObjectID:
		_, ok := v.(primitive.ObjectID)
		return ok
	case metadata.Int:
		switch v.(type) {
		case int, int32:
			return true
		}
		return false
	case metadata.Long:
		switch v.(type) {
		case int, int64:
			return true
		}
		return false
	case metadata.Double:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case metadata.Bool:
		_, ok := v.(bool)
		return ok
	case metadata.DateTime:
		switch v.(type) {
		case time.Time, primitive.DateTime:
			return true
		}
		return false
	case metadata.Decimal:
		_, ok := v.(primitive.Decimal128)
		return ok
	case metadata.Binary:
		switch v.(type) {
		case []byte, primitive.Binary:
			return true
		}
		return false
	}
	return false
}
