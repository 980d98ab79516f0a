package mapping

import (
	"errors"
	"reflect"
	"testing"

	"github.com/twpayne/go-geom"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doclayer/querymap/internal/convert"
	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

func testRegistry(t *testing.T) *metadata.Registry {
	t.Helper()

	b := metadata.NewBuilder()

	person := b.Entity("Person").Collection("people")
	person.ID("id", "_id", metadata.ObjectID)
	person.Field("firstName", "foo", metadata.String)
	person.Field("age", "age", metadata.Int)
	person.Field("score", "score", metadata.Double).Score()
	person.Field("skills", "sk", metadata.String).Collection()
	person.Field("attributes", "attrs", metadata.Any).Map()
	person.Field("location", "loc", metadata.Geometry)
	person.Field("counter", "counter", metadata.Any).WriteTarget(metadata.Long)
	person.Embedded("address", "add", "Address")
	person.Embedded("name", "", "UserName").Unwrapped("")
	person.Embedded("alias", "al", "UserName").Unwrapped("al")
	person.Reference("employer", "employer", "Company")
	person.Reference("mentor", "mentor", "Person").AsPointer()
	person.Reference("colleagues", "colleagues", "Person").Collection()

	address := b.Entity("Address")
	address.Field("city", "c", metadata.String)
	address.Field("street", "s", metadata.String)

	name := b.Entity("UserName").Unwrapped()
	name.Field("first", "first", metadata.String)
	name.Field("last", "last", metadata.String)

	company := b.Entity("Company").Collection("companies")
	company.ID("id", "_id", metadata.Long)
	company.Field("name", "name", metadata.String)

	reg, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func newTestMapper(t *testing.T) (*Mapper, *metadata.Registry) {
	t.Helper()
	reg := testRegistry(t)
	svc := convert.NewService()
	return New(reg, svc, convert.NewWire(svc)), reg
}

func entityOf(t *testing.T, reg *metadata.Registry, name string) *metadata.Entity {
	t.Helper()
	e, ok := reg.Resolve(name)
	if !ok {
		t.Fatalf("entity %s not registered", name)
	}
	return e
}

func TestMapFilterFieldNames(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	tests := []struct {
		name  string
		query bson.D
		want  bson.D
	}{
		{
			name:  "renamed field",
			query: bson.D{{Key: "firstName", Value: "ann"}},
			want:  bson.D{{Key: "foo", Value: "ann"}},
		},
		{
			name:  "field name used directly",
			query: bson.D{{Key: "foo", Value: "ann"}},
			want:  bson.D{{Key: "foo", Value: "ann"}},
		},
		{
			name:  "unresolved key kept verbatim",
			query: bson.D{{Key: "nickname", Value: "fuu"}},
			want:  bson.D{{Key: "nickname", Value: "fuu"}},
		},
		{
			name:  "nested path",
			query: bson.D{{Key: "address.city", Value: "rome"}},
			want:  bson.D{{Key: "add.c", Value: "rome"}},
		},
		{
			name:  "positional index retained",
			query: bson.D{{Key: "skills.0", Value: "go"}},
			want:  bson.D{{Key: "sk.0", Value: "go"}},
		},
		{
			name:  "positional operator retained",
			query: bson.D{{Key: "skills.$", Value: "go"}},
			want:  bson.D{{Key: "sk.$", Value: "go"}},
		},
		{
			name:  "map key survives verbatim",
			query: bson.D{{Key: "attributes.color", Value: "red"}},
			want:  bson.D{{Key: "attrs.color", Value: "red"}},
		},
		{
			name:  "operator document on field",
			query: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}}},
			want:  bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 30}}}},
		},
		{
			name:  "type key copied verbatim",
			query: bson.D{{Key: "_type", Value: "Person"}},
			want:  bson.D{{Key: "_type", Value: "Person"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapFilter(tc.query, person)
			if err != nil {
				t.Fatalf("MapFilter() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapFilter() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapFilterIsIdempotent(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	query := bson.D{
		{Key: "firstName", Value: "ann"},
		{Key: "address.city", Value: "rome"},
		{Key: "id", Value: "5f1d3b2e8c9d4a0001a2b3c4"},
	}

	once, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("first MapFilter() error: %v", err)
	}
	twice, err := m.MapFilter(once, person)
	if err != nil {
		t.Fatalf("second MapFilter() error: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("mapping is not idempotent: %v != %v", once, twice)
	}
}

func TestMapFilterIDHandling(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	hex1 := "5f1d3b2e8c9d4a0001a2b3c4"
	hex2 := "5f1d3b2e8c9d4a0001a2b3c5"
	oid1, _ := primitive.ObjectIDFromHex(hex1)
	oid2, _ := primitive.ObjectIDFromHex(hex2)

	tests := []struct {
		name  string
		query bson.D
		want  bson.D
	}{
		{
			name:  "scalar id converts",
			query: bson.D{{Key: "id", Value: hex1}},
			want:  bson.D{{Key: "_id", Value: oid1}},
		},
		{
			name:  "underscore id converts",
			query: bson.D{{Key: "_id", Value: hex1}},
			want:  bson.D{{Key: "_id", Value: oid1}},
		},
		{
			name:  "in converts element-wise",
			query: bson.D{{Key: "id", Value: bson.D{{Key: "$in", Value: bson.A{hex1, hex2}}}}},
			want:  bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{oid1, oid2}}}}},
		},
		{
			name:  "nin converts element-wise",
			query: bson.D{{Key: "id", Value: bson.D{{Key: "$nin", Value: bson.A{hex1}}}}},
			want:  bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: bson.A{oid1}}}}},
		},
		{
			name:  "ne converts single operand",
			query: bson.D{{Key: "id", Value: bson.D{{Key: "$ne", Value: hex1}}}},
			want:  bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: oid1}}}},
		},
		{
			name:  "unconvertible id passes through",
			query: bson.D{{Key: "id", Value: "not-a-hex-id"}},
			want:  bson.D{{Key: "_id", Value: "not-a-hex-id"}},
		},
		{
			name:  "other operators stay unconverted",
			query: bson.D{{Key: "id", Value: bson.D{{Key: "$gt", Value: hex1}}}},
			want:  bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: hex1}}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapFilter(tc.query, person)
			if err != nil {
				t.Fatalf("MapFilter() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapFilter() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapFilterNilEntity(t *testing.T) {
	m, _ := newTestMapper(t)

	hex := "5f1d3b2e8c9d4a0001a2b3c4"
	oid, _ := primitive.ObjectIDFromHex(hex)

	got, err := m.MapFilter(bson.D{
		{Key: "firstName", Value: "ann"},
		{Key: "_id", Value: hex},
	}, nil)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{
		{Key: "firstName", Value: "ann"},
		{Key: "_id", Value: oid},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterOrExpandsElementWise(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	query := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "firstName", Value: "ann"}},
		bson.D{{Key: "address.city", Value: "rome"}},
	}}}

	got, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "foo", Value: "ann"}},
		bson.D{{Key: "add.c", Value: "rome"}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterUnresolvedDocumentValueKept(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	query := bson.D{{Key: "already.mapped", Value: bson.D{{Key: "$exists", Value: true}}}}

	got, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}
	if !reflect.DeepEqual(got, query) {
		t.Errorf("MapFilter() = %v, want verbatim %v", got, query)
	}
}

func TestMapFilterAssociations(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	oid := primitive.NewObjectID()

	tests := []struct {
		name  string
		query bson.D
		want  bson.D
	}{
		{
			name:  "id value becomes reference",
			query: bson.D{{Key: "employer", Value: 42}},
			want: bson.D{{Key: "employer", Value: convert.DBRef{
				Collection: "companies", ID: int64(42),
			}}},
		},
		{
			name:  "id path truncates to reference key",
			query: bson.D{{Key: "employer.id", Value: 42}},
			want: bson.D{{Key: "employer", Value: convert.DBRef{
				Collection: "companies", ID: int64(42),
			}}},
		},
		{
			name:  "dbref value converts its id",
			query: bson.D{{Key: "employer", Value: convert.DBRef{Collection: "companies", ID: oid}}},
			want:  bson.D{{Key: "employer", Value: convert.DBRef{Collection: "companies", ID: oid}}},
		},
		{
			name:  "document pointer reference stays scalar",
			query: bson.D{{Key: "mentor", Value: oid}},
			want:  bson.D{{Key: "mentor", Value: oid}},
		},
		{
			name:  "in converts references element-wise",
			query: bson.D{{Key: "employer", Value: bson.D{{Key: "$in", Value: bson.A{42, 43}}}}},
			want: bson.D{{Key: "employer", Value: bson.D{{Key: "$in", Value: bson.A{
				convert.DBRef{Collection: "companies", ID: int64(42)},
				convert.DBRef{Collection: "companies", ID: int64(43)},
			}}}}},
		},
		{
			name:  "exists does not build references",
			query: bson.D{{Key: "employer", Value: bson.D{{Key: "$exists", Value: true}}}},
			want:  bson.D{{Key: "employer", Value: bson.D{{Key: "$exists", Value: true}}}},
		},
		{
			name:  "positional suffix on collection reference",
			query: bson.D{{Key: "colleagues.id.$", Value: oid}},
			want:  bson.D{{Key: "colleagues.$", Value: convert.DBRef{Collection: "people", ID: oid}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapFilter(tc.query, person)
			if err != nil {
				t.Fatalf("MapFilter() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapFilter() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapFilterReferenceIntoNonIDFails(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	_, err := m.MapFilter(bson.D{{Key: "employer.name", Value: "acme"}}, person)
	if !errors.Is(err, domain.ErrInvalidPath) {
		t.Fatalf("MapFilter() error = %v, want ErrInvalidPath", err)
	}

	var ipe *domain.InvalidPathError
	if !errors.As(err, &ipe) {
		t.Fatal("error does not carry the offending path")
	}
	if ipe.Path != "employer.name" {
		t.Errorf("path = %q, want employer.name", ipe.Path)
	}
}

func TestMapFilterUnwrapped(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	tests := []struct {
		name  string
		query bson.D
		want  bson.D
	}{
		{
			name:  "empty prefix drops the wrapper segment",
			query: bson.D{{Key: "name.first", Value: "ann"}},
			want:  bson.D{{Key: "first", Value: "ann"}},
		},
		{
			name:  "prefixed wrapper keeps its prefix",
			query: bson.D{{Key: "alias.last", Value: "lee"}},
			want:  bson.D{{Key: "al.last", Value: "lee"}},
		},
		{
			name: "document value splices into the parent",
			query: bson.D{{Key: "name", Value: bson.D{
				{Key: "first", Value: "ann"},
				{Key: "last", Value: "lee"},
			}}},
			want: bson.D{
				{Key: "first", Value: "ann"},
				{Key: "last", Value: "lee"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapFilter(tc.query, person)
			if err != nil {
				t.Fatalf("MapFilter() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapFilter() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapFilterWriteTarget(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	got, err := m.MapFilter(bson.D{{Key: "counter", Value: 7}}, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}
	want := bson.D{{Key: "counter", Value: int64(7)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}

	got, err = m.MapFilter(bson.D{{Key: "counter", Value: bson.A{1, 2}}}, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}
	want = bson.D{{Key: "counter", Value: bson.A{int64(1), int64(2)}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterGeometry(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	point := geom.NewPointFlat(geom.XY, []float64{12.3, 45.6})
	query := bson.D{{Key: "location", Value: bson.D{
		{Key: "$near", Value: bson.D{{Key: "$geometry", Value: point}}},
	}}}

	got, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "loc", Value: bson.D{
		{Key: "$near", Value: bson.D{{Key: "$geometry", Value: bson.D{
			{Key: "type", Value: "Point"},
			{Key: "coordinates", Value: bson.A{12.3, 45.6}},
		}}}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterTypeRestriction(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	got, err := m.MapFilter(bson.D{{Key: RestrictedTypesKey, Value: []string{"Person", "Admin"}}}, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "_type", Value: bson.D{{Key: "$in", Value: bson.A{"Person", "Admin"}}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterExample(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	query := bson.D{{Key: "$example", Value: bson.D{
		{Key: "firstName", Value: "ann"},
		{Key: "_type", Value: "Person"},
	}}}

	got, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "foo", Value: "ann"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterJSONSchema(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	query := bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "required", Value: bson.A{"firstName"}},
		{Key: "properties", Value: bson.D{
			{Key: "firstName", Value: bson.D{{Key: "bsonType", Value: "string"}}},
		}},
	}}}

	got, err := m.MapFilter(query, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "required", Value: bson.A{"foo"}},
		{Key: "properties", Value: bson.D{
			{Key: "foo", Value: bson.D{{Key: "bsonType", Value: "string"}}},
		}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapFilterAcceptsUnorderedMaps(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	got, err := m.MapFilter(bson.D{{Key: "$and", Value: bson.A{
		bson.M{"firstName": "ann"},
	}}}, person)
	if err != nil {
		t.Fatalf("MapFilter() error: %v", err)
	}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "foo", Value: "ann"}},
	}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapFilter() = %v, want %v", got, want)
	}
}

func TestMapSort(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	tests := []struct {
		name string
		sort bson.D
		want bson.D
	}{
		{
			name: "empty sort stays empty",
			sort: bson.D{},
			want: bson.D{},
		},
		{
			name: "field renamed without meta injection",
			sort: bson.D{{Key: "firstName", Value: -1}},
			want: bson.D{{Key: "foo", Value: -1}},
		},
		{
			name: "score reference becomes meta clause",
			sort: bson.D{
				{Key: "score", Value: -1},
				{Key: "firstName", Value: 1},
			},
			want: bson.D{
				{Key: "score", Value: metaTextScore},
				{Key: "foo", Value: 1},
			},
		},
		{
			name: "unwrapped property expands",
			sort: bson.D{{Key: "name", Value: 1}},
			want: bson.D{
				{Key: "first", Value: 1},
				{Key: "last", Value: 1},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapSort(tc.sort, person)
			if err != nil {
				t.Fatalf("MapSort() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapSort() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapSortWithoutScoreProperty(t *testing.T) {
	m, reg := newTestMapper(t)
	company := entityOf(t, reg, "Company")

	got, err := m.MapSort(bson.D{{Key: "name", Value: 1}}, company)
	if err != nil {
		t.Fatalf("MapSort() error: %v", err)
	}
	want := bson.D{{Key: "name", Value: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapSort() = %v, want %v", got, want)
	}
}

func TestMapProjection(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	tests := []struct {
		name   string
		fields bson.D
		want   bson.D
	}{
		{
			name:   "score meta always forced",
			fields: bson.D{{Key: "firstName", Value: 1}},
			want: bson.D{
				{Key: "foo", Value: 1},
				{Key: "score", Value: metaTextScore},
			},
		},
		{
			name:   "named score replaced by meta",
			fields: bson.D{{Key: "score", Value: 1}},
			want:   bson.D{{Key: "score", Value: metaTextScore}},
		},
		{
			name:   "unwrapped property expands",
			fields: bson.D{{Key: "name", Value: 1}},
			want: bson.D{
				{Key: "first", Value: 1},
				{Key: "last", Value: 1},
				{Key: "score", Value: metaTextScore},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.MapProjection(tc.fields, person)
			if err != nil {
				t.Fatalf("MapProjection() error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MapProjection() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapProjectionWithoutScoreProperty(t *testing.T) {
	m, reg := newTestMapper(t)
	company := entityOf(t, reg, "Company")

	got, err := m.MapProjection(bson.D{{Key: "name", Value: 1}}, company)
	if err != nil {
		t.Fatalf("MapProjection() error: %v", err)
	}
	want := bson.D{{Key: "name", Value: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MapProjection() = %v, want %v", got, want)
	}
}

func TestMapFilterRejectsNonDocuments(t *testing.T) {
	m, reg := newTestMapper(t)
	person := entityOf(t, reg, "Person")

	if _, err := m.mapObject(42, person); !errors.Is(err, domain.ErrBadDocument) {
		t.Errorf("mapObject(42) error = %v, want ErrBadDocument", err)
	}
}
