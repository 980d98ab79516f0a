package mapping

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

func buildFieldRegistry(t *testing.T) *metadata.Registry {
	t.Helper()

	b := metadata.NewBuilder()

	person := b.Entity("Person").Collection("people")
	person.ID("id", "_id", metadata.ObjectID)
	person.Field("firstName", "foo", metadata.String)
	person.Field("skills", "sk", metadata.String).Collection()
	person.Field("attributes", "attrs", metadata.Any).Map()
	person.Field("weird.name", "wn", metadata.String)
	person.Embedded("address", "add", "Address")
	person.Reference("employer", "employer", "Company")

	address := b.Entity("Address")
	address.Field("city", "c", metadata.String)

	company := b.Entity("Company").Collection("companies")
	company.ID("id", "_id", metadata.Long)
	company.Field("name", "name", metadata.String)

	reg, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func TestMetadataFieldMappedKey(t *testing.T) {
	reg := buildFieldRegistry(t)
	person, _ := reg.Resolve("Person")

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"simple rename", "firstName", "foo"},
		{"identifier", "id", "_id"},
		{"underscore identifier", "_id", "_id"},
		{"nested path", "address.city", "add.c"},
		{"literal dotted property wins", "weird.name", "wn"},
		{"positional index on collection", "skills.3", "sk.3"},
		{"positional operator on collection", "skills.$", "sk.$"},
		{"filtered positional operator", "skills.$[expr]", "sk.$[expr]"},
		{"map key retained", "attributes.color", "attrs.color"},
		{"index on non collection dropped", "firstName.0", "foo"},
		{"reference id path truncates", "employer.id", "employer"},
		{"reference underscore id path truncates", "employer._id", "employer"},
		{"unresolved stays raw", "nickname", "nickname"},
		{"unresolved dotted stays raw", "some.deep.path", "some.deep.path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := newMetadataField(tc.key, person, reg, nil, zap.NewNop())
			if err != nil {
				t.Fatalf("newMetadataField(%q) error: %v", tc.key, err)
			}
			if got := f.mappedKey(); got != tc.want {
				t.Errorf("mappedKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestMetadataFieldInvalidAssociationPath(t *testing.T) {
	reg := buildFieldRegistry(t)
	person, _ := reg.Resolve("Person")

	_, err := newMetadataField("employer.name", person, reg, nil, zap.NewNop())
	if !errors.Is(err, domain.ErrInvalidPath) {
		t.Fatalf("error = %v, want ErrInvalidPath", err)
	}
}

func TestMetadataFieldIDDetection(t *testing.T) {
	reg := buildFieldRegistry(t)
	person, _ := reg.Resolve("Person")

	tests := []struct {
		key  string
		want bool
	}{
		{"id", true},
		{"_id", true},
		{"firstName", false},
		{"employer", false},
	}

	for _, tc := range tests {
		f, err := newMetadataField(tc.key, person, reg, nil, zap.NewNop())
		if err != nil {
			t.Fatalf("newMetadataField(%q) error: %v", tc.key, err)
		}
		if got := f.isIDField(); got != tc.want {
			t.Errorf("isIDField(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestMetadataFieldUnresolved(t *testing.T) {
	reg := buildFieldRegistry(t)
	person, _ := reg.Resolve("Person")

	resolved, err := newMetadataField("firstName", person, reg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newMetadataField error: %v", err)
	}
	if resolved.unresolved() {
		t.Error("firstName should resolve")
	}

	raw, err := newMetadataField("nickname", person, reg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newMetadataField error: %v", err)
	}
	if !raw.unresolved() {
		t.Error("nickname should be unresolved")
	}
}

func TestMetadataFieldSourceShortcut(t *testing.T) {
	reg := buildFieldRegistry(t)
	person, _ := reg.Resolve("Person")
	idProp, _ := person.IDProperty()

	f, err := newMetadataField("whatever", person, reg, idProp, zap.NewNop())
	if err != nil {
		t.Fatalf("newMetadataField error: %v", err)
	}
	if f.property() != idProp {
		t.Error("source property should resolve directly")
	}
}

func TestPlainField(t *testing.T) {
	f := plainField{fname: "anything"}
	if f.mappedKey() != "anything" {
		t.Errorf("mappedKey() = %q, want anything", f.mappedKey())
	}
	if f.isIDField() {
		t.Error("anything should not be an id field")
	}

	idField := plainField{fname: "_id"}
	if !idField.isIDField() {
		t.Error("_id should be an id field")
	}
	if idField.mappedKey() != "_id" {
		t.Errorf("mappedKey() = %q, want _id", idField.mappedKey())
	}
}
