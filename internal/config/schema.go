package config

import (
	"fmt"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// BuildRegistry turns the declared schemas into a metadata registry.
func BuildRegistry(cfg Config) (*metadata.Registry, error) {
	b := metadata.NewBuilder()

	for _, s := range cfg.Schemas {
		eb := b.Entity(s.Name)
		if s.Collection != "" {
			eb.Collection(s.Collection)
		}
		if s.Unwrapped {
			eb.Unwrapped()
		}
		for _, pc := range s.Properties {
			if err := addProperty(eb, pc); err != nil {
				return nil, fmt.Errorf("schema %s: %w", s.Name, err)
			}
		}
	}

	reg, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build schema registry: %w", err)
	}
	return reg, nil
}

func addProperty(eb *metadata.EntityBuilder, pc PropertyConfig) error {
	kind := metadata.Any
	if pc.Kind != "" {
		k, ok := metadata.ParseKind(pc.Kind)
		if !ok {
			return fmt.Errorf("property %s has unknown kind %q", pc.Name, pc.Kind)
		}
		kind = k
	}

	field := pc.Field
	if field == "" {
		field = pc.Name
	}

	var pb *metadata.PropertyBuilder
	switch {
	case pc.ID:
		pb = eb.ID(pc.Name, field, kind)
	case pc.Embeds != "":
		pb = eb.Embedded(pc.Name, field, pc.Embeds)
	case pc.References != "":
		pb = eb.Reference(pc.Name, field, pc.References)
	default:
		pb = eb.Field(pc.Name, field, kind)
	}

	if pc.Map {
		pb.Map()
	}
	if pc.List {
		pb.Collection()
	}
	if pc.Score {
		pb.Score()
	}
	if pc.Unwrapped {
		pb.Unwrapped(pc.UnwrappedPrefix)
	}
	if pc.DocumentPointer {
		pb.AsPointer()
	}
	if pc.RefAnnotation {
		pb.Annotated()
	}
	if pc.WriteTarget != "" {
		k, ok := metadata.ParseKind(pc.WriteTarget)
		if !ok {
			return fmt.Errorf("property %s has unknown write_target %q", pc.Name, pc.WriteTarget)
		}
		pb.WriteTarget(k)
	}
	return nil
}
