package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tag keys used for kinds that plain JSON cannot express.
const (
	tagSet    = "$set"
	tagTuple  = "$tuple"
	tagMap    = "$map"
	tagVertex = "$vertex"
	tagEdge   = "$edge"
)

// MarshalValue encodes v as JSON for persistence.
//
// Plain JSON is used where it is unambiguous: null, bool, int, string, list
// and record. Doubles always carry a fraction or exponent so they decode back
// as Double. Sets, tuples, maps, vertices and edges become single-key tagged
// objects ({"$set": [...]}). Opaque values cannot be persisted.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Double:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("cannot encode non-finite double %v", f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case String:
		b, err := json.Marshal(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Vertex:
		fmt.Fprintf(buf, `{%q:%d}`, tagVertex, int64(val))
	case Edge:
		fmt.Fprintf(buf, `{%q:%d}`, tagEdge, int64(val))
	case List:
		return writeJSONArray(buf, val)
	case Tuple:
		fmt.Fprintf(buf, `{%q:`, tagTuple)
		if err := writeJSONArray(buf, val); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Set:
		fmt.Fprintf(buf, `{%q:`, tagSet)
		if err := writeJSONArray(buf, val.Elements()); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Map:
		fmt.Fprintf(buf, `{%q:[`, tagMap)
		keys, vals := val.Entries()
		for i := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONArray(buf, []Value{keys[i], vals[i]}); err != nil {
				return fmt.Errorf("map entry %d: %w", i, err)
			}
		}
		buf.WriteString("]}")
	case Record:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if strings.HasPrefix(k, "$") {
				return fmt.Errorf("record component %q: names starting with $ are reserved", k)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, val[k]); err != nil {
				return fmt.Errorf("record component %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode %s value as JSON", KindName(v))
	}
	return nil
}

func writeJSONArray(buf *bytes.Buffer, vals []Value) error {
	buf.WriteByte('[')
	for i, e := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, e); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

// UnmarshalValue decodes JSON produced by MarshalValue.
// Uses json.Decoder with UseNumber() so int64 values keep full precision.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid double %s: %w", s, err)
			}
			return Double(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		return fromJSONList(val)
	case map[string]any:
		if len(val) == 1 {
			for tag, inner := range val {
				if strings.HasPrefix(tag, "$") {
					return fromJSONTagged(tag, inner)
				}
			}
		}
		rec := make(Record, len(val))
		for k, elem := range val {
			ev, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("record component %q: %w", k, err)
			}
			rec[k] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", v)
	}
}

func fromJSONList(raw []any) (List, error) {
	list := make(List, len(raw))
	for i, elem := range raw {
		ev, err := fromJSON(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		list[i] = ev
	}
	return list, nil
}

func fromJSONTagged(tag string, inner any) (Value, error) {
	switch tag {
	case tagVertex, tagEdge:
		n, ok := inner.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%s: expected integer id, got %T", tag, inner)
		}
		id, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		if tag == tagVertex {
			return Vertex(id), nil
		}
		return Edge(id), nil
	}

	raw, ok := inner.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected array, got %T", tag, inner)
	}
	switch tag {
	case tagSet:
		list, err := fromJSONList(raw)
		if err != nil {
			return nil, fmt.Errorf("%s%w", tag, err)
		}
		return NewSet(list...), nil
	case tagTuple:
		list, err := fromJSONList(raw)
		if err != nil {
			return nil, fmt.Errorf("%s%w", tag, err)
		}
		return Tuple(list), nil
	case tagMap:
		b := NewMapBuilder()
		for i, entry := range raw {
			pair, ok := entry.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%s[%d]: expected [key, value] pair", tag, i)
			}
			k, err := fromJSON(pair[0])
			if err != nil {
				return nil, fmt.Errorf("%s[%d] key: %w", tag, i, err)
			}
			v, err := fromJSON(pair[1])
			if err != nil {
				return nil, fmt.Errorf("%s[%d] value: %w", tag, i, err)
			}
			b.Put(k, v)
		}
		return b.Build(), nil
	default:
		return nil, fmt.Errorf("unknown value tag %q", tag)
	}
}
