package attribute

import (
	"fmt"
	"math"
	"strconv"
)

// DecodeWarning reports a cell that could not be decoded as its kind and was
// kept as its raw text instead.
type DecodeWarning struct {
	Field string
	Value Value
	Err   error
}

func (w *DecodeWarning) Error() string {
	return fmt.Sprintf("field %q: cannot decode %s: %v", w.Field, w.Value, w.Err)
}

func (w *DecodeWarning) Unwrap() error { return w.Err }

// Decode converts a typed cell into a scalar suitable for a GeoJSON property:
// float64, string or nil. Empty numerics become "" and empty characters
// become nil. Kinds without a dedicated rule keep their raw text.
func Decode(field string, v Value) (any, *DecodeWarning) {
	switch v.Kind {
	case KindNumeric:
		if v.Null {
			return "", nil
		}
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = fmt.Errorf("non-finite number %q", v.Raw)
		}
		if err != nil {
			return v.Raw, &DecodeWarning{Field: field, Value: v, Err: err}
		}
		return f, nil

	case KindCharacter:
		if v.Null {
			return nil, nil
		}
		return v.Raw, nil

	default:
		return v.Raw, nil
	}
}
