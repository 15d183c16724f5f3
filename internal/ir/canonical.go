package ir

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Keyer lets Opaque payloads provide their own canonical identity.
// Payloads that do not implement it are identified by type and printed form.
type Keyer interface {
	CanonicalKey() string
}

// Key returns the canonical identity of v.
// CRITICAL: Two values are the same set element iff their keys are equal.
//
// Properties:
//  1. Kind-tagged (Int 1 and Double 1 are distinct elements)
//  2. Strings are NFC normalised and quoted
//  3. Sets, records and maps are rendered in canonical order, so keys are
//     independent of construction order
func Key(v Value) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil, Null:
		sb.WriteString("n")
	case Bool:
		if val {
			sb.WriteString("b1")
		} else {
			sb.WriteString("b0")
		}
	case Int:
		sb.WriteString("i")
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case Double:
		sb.WriteString("d")
		sb.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 64))
	case String:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(norm.NFC.String(string(val))))
	case Vertex:
		sb.WriteString("v")
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case Edge:
		sb.WriteString("e")
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case List:
		writeKeySeq(sb, "l[", val)
	case Tuple:
		writeKeySeq(sb, "t[", val)
	case *Set:
		writeKeySeq(sb, "S[", val.Elements())
	case Record:
		sb.WriteString("r{")
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			writeKey(sb, val[k])
		}
		sb.WriteByte('}')
	case *Map:
		sb.WriteString("m{")
		keys, vals := val.Entries()
		for i := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeKey(sb, keys[i])
			sb.WriteString("=>")
			writeKey(sb, vals[i])
		}
		sb.WriteByte('}')
	case Opaque:
		sb.WriteString("o:")
		sb.WriteString(val.Label)
		sb.WriteByte(':')
		if k, ok := val.Payload.(Keyer); ok {
			sb.WriteString(k.CanonicalKey())
		} else {
			fmt.Fprintf(sb, "%T@%p", val.Payload, val.Payload)
		}
	default:
		fmt.Fprintf(sb, "?%T", v)
	}
}

func writeKeySeq(sb *strings.Builder, open string, vals []Value) {
	sb.WriteString(open)
	for i, e := range vals {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeKey(sb, e)
	}
	sb.WriteByte(']')
}

// Equal reports whether a and b are the same value.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}

// kindRank orders value kinds for Compare. Numbers share a rank so that
// mixed Int/Double collections sort numerically.
func kindRank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int, Double:
		return 2
	case String:
		return 3
	case Vertex:
		return 4
	case Edge:
		return 5
	case Tuple:
		return 6
	case List:
		return 7
	case *Set:
		return 8
	case Record:
		return 9
	case *Map:
		return 10
	default:
		return 11
	}
}

// Compare defines the canonical total order over values.
// Returns -1, 0 or +1 like cmp.Compare.
func Compare(a, b Value) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch av := a.(type) {
	case nil, Null:
		return 0
	case Bool:
		bv := b.(Bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case Int, Double:
		fa, fb := asFloat(a), asFloat(b)
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
		// Equal magnitude: Int sorts before Double for a total order.
		_, aIsInt := a.(Int)
		_, bIsInt := b.(Int)
		switch {
		case aIsInt && !bIsInt:
			return -1
		case !aIsInt && bIsInt:
			return 1
		}
		return 0
	case String:
		return strings.Compare(norm.NFC.String(string(av)), norm.NFC.String(string(b.(String))))
	case Vertex:
		return cmp.Compare(av, b.(Vertex))
	case Edge:
		return cmp.Compare(av, b.(Edge))
	case Tuple:
		return compareSeq(av, b.(Tuple))
	case List:
		return compareSeq(av, b.(List))
	case *Set:
		return compareSeq(av.Elements(), b.(*Set).Elements())
	default:
		return strings.Compare(Key(a), Key(b))
	}
}

func compareSeq(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

func asFloat(v Value) float64 {
	switch n := v.(type) {
	case Int:
		return float64(n)
	case Double:
		return float64(n)
	default:
		return math.NaN()
	}
}
