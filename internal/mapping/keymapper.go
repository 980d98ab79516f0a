package mapping

import (
	"strconv"
	"strings"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// keyConverter renders one resolved property to its wire key segment.
// ok=false stops rendering entirely (truncation at a reference
// boundary); an empty segment is dropped but rendering continues.
type keyConverter func(*metadata.Property) (segment string, ok bool)

// positionRetainingConverter renders properties to field names and
// re-appends raw path segments that were positional operators, as long
// as the owning property is collection-like. Map keys are data, not
// metadata, and are re-appended verbatim.
func positionRetainingConverter(rawKey string) keyConverter {
	segments := strings.Split(rawKey, ".")[1:]
	idx := 0

	return func(p *metadata.Property) (string, bool) {
		var sb strings.Builder
		sb.WriteString(p.FieldName())

		inspect := idx < len(segments)
		for inspect {
			partial := segments[idx]
			idx++

			positional := isPositionalSegment(partial) && p.IsCollection()
			if positional || p.IsMap() {
				sb.WriteString(".")
				sb.WriteString(partial)
			}

			inspect = positional && idx < len(segments)
		}

		return sb.String(), true
	}
}

// associationConverter renders properties to field names until the
// reference property is reached, then suppresses all further output so
// the mapped key is truncated at the reference boundary.
func associationConverter(rawKey string, assoc *metadata.Property) keyConverter {
	found := false

	return func(p *metadata.Property) (string, bool) {
		if found {
			return "", false
		}
		if p == assoc {
			found = true
			if strings.HasSuffix(rawKey, "$") && assoc.IsCollection() {
				return p.FieldName() + ".$", true
			}
		}
		return p.FieldName(), true
	}
}

func isPositionalSegment(partial string) bool {
	if partial == "$" {
		return true
	}
	if positionalOperator.MatchString(partial) {
		return true
	}
	_, err := strconv.ParseInt(partial, 10, 64)
	return err == nil
}
