package graph

import (
	"encoding/json"
	"fmt"
)

// toFloat converts any Go numeric kind (and json.Number) to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isScalar(v interface{}) bool {
	if _, ok := toFloat(v); ok {
		return true
	}
	switch v.(type) {
	case string, bool:
		return true
	}
	return false
}

func metricEqual(value, want interface{}) (bool, error) {
	if a, ok := toFloat(value); ok {
		if b, ok := toFloat(want); ok {
			return a == b, nil
		}
		return false, incompatible(value, want)
	}
	switch a := value.(type) {
	case string:
		if b, ok := want.(string); ok {
			return a == b, nil
		}
	case bool:
		if b, ok := want.(bool); ok {
			return a == b, nil
		}
	}
	return false, incompatible(value, want)
}

func metricWithin(value, threshold interface{}) (bool, error) {
	if a, ok := toFloat(value); ok {
		if b, ok := toFloat(threshold); ok {
			return a <= b, nil
		}
		return false, incompatible(value, threshold)
	}
	if a, ok := value.(string); ok {
		if b, ok := threshold.(string); ok {
			return a <= b, nil
		}
	}
	return false, incompatible(value, threshold)
}

func incompatible(value, want interface{}) error {
	return fmt.Errorf("%w: %v (%T) vs %v (%T)", ErrIncompatibleMetric, value, value, want, want)
}
