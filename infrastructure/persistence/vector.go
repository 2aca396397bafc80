// Package persistence implements the storage backend adapters.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Float64Slice stores an embedding vector as a JSON array in a text column.
type Float64Slice []float64

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(f))
	if err != nil {
		return nil, fmt.Errorf("marshal vector: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported vector column type %T", value)
	}

	var out []float64
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal vector: %w", err)
	}
	*f = out
	return nil
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero when either vector is empty, zero-length, or the dimensions differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// asFloat64Vector converts the driver representations a stored vector can
// come back as into a []float64.
func asFloat64Vector(value any) ([]float64, bool) {
	switch v := value.(type) {
	case []float64:
		return v, true
	case Float64Slice:
		return v, true
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := asFloat64(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case string:
		var out Float64Slice
		if err := out.Scan(v); err != nil {
			return nil, false
		}
		return out, true
	case []byte:
		var out Float64Slice
		if err := out.Scan(v); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
