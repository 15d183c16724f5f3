package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
)

// TypeError reports that a value has an unexpected kind.
// The evaluator maps it onto its TYPE_MISMATCH error code.
type TypeError struct {
	Want string
	Got  string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

func typeError(want string, got Value) *TypeError {
	return &TypeError{Want: want, Got: KindName(got)}
}

// AsBool returns the boolean held by v.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, typeError("bool", v)
	}
	return bool(b), nil
}

// AsInt returns the integer held by v. Doubles with an integral value are
// accepted, other kinds are a TypeError.
func AsInt(v Value) (int64, error) {
	switch n := v.(type) {
	case Int:
		return int64(n), nil
	case Double:
		f := float64(n)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	}
	return 0, typeError("int", v)
}

// AsNumber returns v as float64 for Int and Double values.
func AsNumber(v Value) (float64, error) {
	switch n := v.(type) {
	case Int:
		return float64(n), nil
	case Double:
		return float64(n), nil
	}
	return 0, typeError("number", v)
}

// AsString returns the string held by v.
func AsString(v Value) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", typeError("string", v)
	}
	return string(s), nil
}

// AsVertex returns the vertex id held by v.
func AsVertex(v Value) (Vertex, error) {
	vx, ok := v.(Vertex)
	if !ok {
		return 0, typeError("vertex", v)
	}
	return vx, nil
}

// AsEdge returns the edge id held by v.
func AsEdge(v Value) (Edge, error) {
	e, ok := v.(Edge)
	if !ok {
		return 0, typeError("edge", v)
	}
	return e, nil
}

// Elements returns the members of any collection value.
// A Null is treated as the empty collection; scalars are a TypeError.
func Elements(v Value) ([]Value, error) {
	switch c := v.(type) {
	case nil, Null:
		return nil, nil
	case *Set:
		return c.Elements(), nil
	case List:
		return c, nil
	case Tuple:
		return c, nil
	case *Map:
		keys, _ := c.Entries()
		return keys, nil
	}
	return nil, typeError("collection", v)
}

// IsCollection reports whether v is a Set, List, Tuple or Map.
func IsCollection(v Value) bool {
	switch v.(type) {
	case *Set, List, Tuple, *Map:
		return true
	}
	return false
}

// FromGo converts a decoded YAML/JSON/CUE value into a Value.
// Integers become Int, floats Double; maps become Records.
// Map keys are sorted so errors are reported deterministically.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(int64(val)), nil
	case float64:
		return Double(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Double(f), nil
	case *big.Int:
		if !val.IsInt64() {
			return nil, fmt.Errorf("integer %s overflows int64", val)
		}
		return Int(val.Int64()), nil
	case string:
		return String(val), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		rec := make(Record, len(val))
		for _, k := range keys {
			ev, err := FromGo(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
