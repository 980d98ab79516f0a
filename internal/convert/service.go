// Package convert turns raw query operands into their wire representation:
// scalar kind coercion, identifier conversion and reference construction.
package convert

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/doclayer/querymap/internal/domain"
	"github.com/doclayer/querymap/internal/domain/metadata"
)

// ConverterFunc coerces a single value to one target kind.
type ConverterFunc func(value any) (any, error)

// Service performs scalar kind coercion. Safe for concurrent use after
// construction.
type Service struct {
	converters map[metadata.Kind]ConverterFunc
}

// NewService creates a conversion service with the default converters
// registered.
func NewService() *Service {
	s := &Service{converters: make(map[metadata.Kind]ConverterFunc)}
	s.Register(metadata.ObjectID, toObjectID)
	s.Register(metadata.String, toString)
	s.Register(metadata.Int, toInt)
	s.Register(metadata.Long, toLong)
	s.Register(metadata.Double, toDouble)
	s.Register(metadata.Bool, toBool)
	s.Register(metadata.DateTime, toDateTime)
	s.Register(metadata.Decimal, toDecimal)
	s.Register(metadata.Binary, toBinary)
	return s
}

// Register installs (or replaces) the converter for a target kind.
func (s *Service) Register(to metadata.Kind, fn ConverterFunc) {
	s.converters[to] = fn
}

// CanConvert reports whether value can be coerced to the target kind.
func (s *Service) CanConvert(value any, to metadata.Kind) bool {
	fn, ok := s.converters[to]
	if !ok {
		return false
	}
	_, err := fn(value)
	return err == nil
}

// Convert coerces value to the target kind.
func (s *Service) Convert(value any, to metadata.Kind) (any, error) {
	fn, ok := s.converters[to]
	if !ok {
		return nil, fmt.Errorf("%w: no converter for kind %s", domain.ErrConversion, to)
	}
	converted, err := fn(value)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", domain.ErrConversion, to, err)
	}
	return converted, nil
}

func toObjectID(value any) (any, error) {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v, nil
	case string:
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("parse object id %q: %w", v, err)
		}
		return id, nil
	case []byte:
		if len(v) != 12 {
			return nil, fmt.Errorf("object id needs 12 bytes, got %d", len(v))
		}
		var id primitive.ObjectID
		copy(id[:], v)
		return id, nil
	}
	return nil, fmt.Errorf("cannot build object id from %T", value)
}

func toString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case primitive.ObjectID:
		return v.Hex(), nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int32, int64, float32, float64, bool:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("cannot stringify %T", value)
}

func toInt(value any) (any, error) {
	switch v := value.(type) {
	case int32:
		return v, nil
	case int:
		return int32(v), nil
	case int64:
		return int32(v), nil
	case float64:
		return int32(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", v, err)
		}
		return int32(n), nil
	}
	return nil, fmt.Errorf("cannot convert %T to int", value)
}

func toLong(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse long %q: %w", v, err)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot convert %T to long", value)
}

func toDouble(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse double %q: %w", v, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to double", value)
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", v, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot convert %T to bool", value)
}

func toDateTime(value any) (any, error) {
	switch v := value.(type) {
	case primitive.DateTime:
		return v, nil
	case time.Time:
		return primitive.NewDateTimeFromTime(v), nil
	case int64:
		return primitive.DateTime(v), nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("parse datetime %q: %w", v, err)
		}
		return primitive.NewDateTimeFromTime(t), nil
	}
	return nil, fmt.Errorf("cannot convert %T to datetime", value)
}

func toDecimal(value any) (any, error) {
	switch v := value.(type) {
	case primitive.Decimal128:
		return v, nil
	case string:
		d, err := primitive.ParseDecimal128(v)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", v, err)
		}
		return d, nil
	case float64:
		d, err := primitive.ParseDecimal128(strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return nil, fmt.Errorf("decimal from float: %w", err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("cannot convert %T to decimal", value)
}

func toBinary(value any) (any, error) {
	switch v := value.(type) {
	case primitive.Binary:
		return v, nil
	case []byte:
		return primitive.Binary{Data: v}, nil
	}
	return nil, fmt.Errorf("cannot convert %T to binary", value)
}
