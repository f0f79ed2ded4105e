package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDocument is returned when a stored document cannot be mapped onto
// a domain entity.
var ErrInvalidDocument = errors.New("invalid document")

// Documents arrive as decoded JSON, so numbers may be json.Number (decoder
// with UseNumber), float64 (plain decoder) or native ints (in-memory writes).

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func boolField(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func int64Field(data map[string]any, key string) (int64, error) {
	switch v := data[key].(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
		}
		return int64(f), nil
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidDocument, key, v)
	}
}

func decimalField(data map[string]any, key string) (decimal.Decimal, error) {
	switch v := data[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
		}
		return d, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("%w: %s is not finite", ErrInvalidDocument, key)
		}
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s has type %T", ErrInvalidDocument, key, v)
	}
}

// Millis converts t into the createdAt representation used by documents.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
