package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/logger"
	"github.com/doclayer/querymap/internal/metrics"
)

// Kind selects which mapping rules to apply to a document.
type Kind string

const (
	KindFilter     Kind = "filter"
	KindSort       Kind = "sort"
	KindProjection Kind = "projection"
)

// ParseKind parses a translation kind from its wire name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindFilter, KindSort, KindProjection:
		return Kind(s), true
	default:
		return "", false
	}
}

// Service translates extended JSON query documents into their mapped form.
type Service struct {
	mapper  DocumentMapper
	schemas SchemaResolver
}

// New creates a translation service.
func New(mapper DocumentMapper, schemas SchemaResolver) *Service {
	return &Service{mapper: mapper, schemas: schemas}
}

// Translate parses the extended JSON payload, maps it against the named
// schema and returns the mapped document as canonical extended JSON.
func (s *Service) Translate(ctx context.Context, schema string, kind Kind, payload []byte) ([]byte, error) {
	start := time.Now()

	out, err := s.translate(ctx, schema, kind, payload)

	status := "ok"
	if err != nil {
		status = "error"
		metrics.TranslationErrorsTotal.WithLabelValues(schema, string(kind), errorType(err)).Inc()
	}
	metrics.TranslationsTotal.WithLabelValues(schema, string(kind), status).Inc()
	metrics.TranslationDuration.WithLabelValues(schema, string(kind)).Observe(time.Since(start).Seconds())

	return out, err
}

func (s *Service) translate(ctx context.Context, schema string, kind Kind, payload []byte) ([]byte, error) {
	entity, ok := s.schemas.Resolve(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSchema, schema)
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(payload, true, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadDocument, err)
	}

	var mapped bson.D
	var err error
	switch kind {
	case KindFilter:
		mapped, err = s.mapper.MapFilter(doc, entity)
	case KindSort:
		mapped, err = s.mapper.MapSort(doc, entity)
	case KindProjection:
		mapped, err = s.mapper.MapProjection(doc, entity)
	default:
		return nil, fmt.Errorf("%w: unsupported translation kind %q", domain.ErrBadDocument, kind)
	}
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("translated document",
		zap.String("schema", schema),
		zap.String("kind", string(kind)),
		zap.Int("entries", len(mapped)))

	out, err := bson.MarshalExtJSON(mapped, true, false)
	if err != nil {
		return nil, fmt.Errorf("marshal mapped document: %w", err)
	}
	return out, nil
}

// Schemas lists the registered schema names.
func (s *Service) Schemas() []string {
	return s.schemas.Names()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, domain.ErrUnknownSchema):
		return "unknown_schema"
	case errors.Is(err, domain.ErrBadDocument):
		return "bad_document"
	case errors.Is(err, domain.ErrMalformedOperator):
		return "malformed_operator"
	case errors.Is(err, domain.ErrConversion):
		return "conversion"
	default:
		return "internal"
	}
}
