package metadata

// Kind is the declared wire kind of a property value. Entities declare
// their kinds up front; nothing is discovered at run time.
type Kind int

// Declared property kinds.
const (
	// Any marks an open type (interface-like); mapping treats its values
	// as generic rather than as nested structured documents.
	Any Kind = iota
	String
	Int
	Long
	Double
	Bool
	DateTime
	ObjectID
	Binary
	Decimal
	Document
	Geometry
)

var kindNames = map[Kind]string{
	Any:      "any",
	String:   "string",
	Int:      "int",
	Long:     "long",
	Double:   "double",
	Bool:     "bool",
	DateTime: "datetime",
	ObjectID: "objectid",
	Binary:   "binary",
	Decimal:  "decimal",
	Document: "document",
	Geometry: "geometry",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind resolves a kind by its name. Unknown names resolve to Any.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return Any, false
}
