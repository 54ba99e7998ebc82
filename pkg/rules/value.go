package rules

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNothing is the unit "unresolved / none" sentinel. The zero Value
	// is Nothing.
	KindNothing Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindSet
	KindObject
	KindFunc
	KindAuthz
)

// String returns the language-level name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNothing:
		return "nothing"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindBytes:
		return "bytes"
	case KindSet:
		return "set"
	case KindObject:
		return "object"
	case KindFunc:
		return "function"
	case KindAuthz:
		return "authorization"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is the tagged union of runtime values flowing through the evaluator.
// Values are immutable; the zero Value is Nothing.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // Str; Bytes are stored here too to keep Value comparable-ish
	set  *Set
	obj  Object
	fn   *Func
	az   *Authorization
}

// Nothing is the unit value.
var Nothing = Value{}

// True and False are the boolean constants.
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool}
)

// Bool wraps a Go bool.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int wraps a Go int64.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a Go float64.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Str wraps a Go string.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Bytes wraps a byte string. The bytes are copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, s: string(b)} }

// ObjectValue wraps an opaque host value. A nil Object yields Nothing.
func ObjectValue(o Object) Value {
	if o == nil {
		return Nothing
	}
	return Value{kind: KindObject, obj: o}
}

// FuncValue wraps a callable.
func FuncValue(f *Func) Value {
	if f == nil {
		return Nothing
	}
	return Value{kind: KindFunc, fn: f}
}

// AuthzValue wraps an Authorization result.
func AuthzValue(a *Authorization) Value {
	if a == nil {
		return Nothing
	}
	return Value{kind: KindAuthz, az: a}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNothing reports whether v is the Nothing sentinel.
func (v Value) IsNothing() bool { return v.kind == KindNothing }

// AsBool returns the wrapped bool. Valid only for KindBool.
func (v Value) AsBool() bool { return v.b }

// AsInt returns the wrapped int64. Valid only for KindInt.
func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the wrapped float64. Valid only for KindFloat.
func (v Value) AsFloat() float64 { return v.f }

// AsStr returns the wrapped string. Valid only for KindStr.
func (v Value) AsStr() string { return v.s }

// AsBytes returns a copy of the wrapped byte string. Valid only for KindBytes.
func (v Value) AsBytes() []byte { return []byte(v.s) }

// AsSet returns the wrapped set. Valid only for KindSet.
func (v Value) AsSet() *Set { return v.set }

// AsObject returns the wrapped host object. Valid only for KindObject.
func (v Value) AsObject() Object { return v.obj }

// AsFunc returns the wrapped callable. Valid only for KindFunc.
func (v Value) AsFunc() *Func { return v.fn }

// AsAuthz returns the wrapped Authorization. Valid only for KindAuthz.
func (v Value) AsAuthz() *Authorization { return v.az }

// Truthy reports the language truth value of v: Nothing, False, numeric
// zero, and empty string/bytes/set are false; everything else is true.
// Host objects may override via the Truther capability.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNothing:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindStr, KindBytes:
		return v.s != ""
	case KindSet:
		return v.set.Len() > 0
	case KindObject:
		if t, ok := v.obj.(Truther); ok {
			return t.Truthy()
		}
		return true
	case KindAuthz:
		return v.az.Verdict()
	}
	return true
}

// numeric reports whether v is an int or float, and its float64 reading.
func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equal reports structural equality. Ints and floats compare numerically
// across kinds; values of otherwise different kinds are unequal. Host
// objects compare through the Equaler capability, falling back to interface
// identity.
func (v Value) Equal(o Value) bool {
	if v.kind == KindObject {
		if eq, ok := v.obj.(Equaler); ok {
			return eq.Equals(o)
		}
	}
	if o.kind == KindObject {
		if eq, ok := o.obj.(Equaler); ok {
			return eq.Equals(v)
		}
	}
	if vf, ok := v.numeric(); ok {
		if of, ok := o.numeric(); ok {
			return vf == of && !(v.kind == KindFloat && math.IsNaN(v.f)) && !(o.kind == KindFloat && math.IsNaN(o.f))
		}
		return false
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNothing:
		return true
	case KindBool:
		return v.b == o.b
	case KindStr, KindBytes:
		return v.s == o.s
	case KindSet:
		return v.set.equal(o.set)
	case KindObject:
		return objectsIdentical(v.obj, o.obj)
	case KindFunc:
		return v.fn == o.fn
	case KindAuthz:
		return v.az.Equal(o.az)
	}
	return false
}

// Compare orders two values. The second return is false when the values are
// incomparable. Numbers order numerically across int/float; strings and
// bytes order lexicographically; host objects may order through the
// Comparer capability.
func (v Value) Compare(o Value) (int, bool) {
	if v.kind == KindObject {
		if c, ok := v.obj.(Comparer); ok {
			return c.Compare(o)
		}
	}
	if o.kind == KindObject {
		if c, ok := o.obj.(Comparer); ok {
			r, ok2 := c.Compare(v)
			return -r, ok2
		}
	}
	if vf, ok := v.numeric(); ok {
		if of, ok := o.numeric(); ok {
			switch {
			case vf < of:
				return -1, true
			case vf > of:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if v.kind != o.kind {
		return 0, false
	}
	switch v.kind {
	case KindStr, KindBytes:
		return strings.Compare(v.s, o.s), true
	}
	return 0, false
}

// Hash returns a hash value consistent with Equal, so values can live in
// sets. Functions and authorizations hash by identity; host objects may
// provide the Hasher capability.
func (v Value) Hash() uint64 {
	switch v.kind {
	case KindNothing:
		return 0x9e3779b97f4a7c15
	case KindBool:
		if v.b {
			return 0x2545f4914f6cdd1d
		}
		return 0x27d4eb2f165667c5
	case KindInt:
		return hashUint64(uint64(v.i))
	case KindFloat:
		// Integral floats hash like the equal int so {1} and {1.0} agree.
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) && v.f >= math.MinInt64 && v.f <= math.MaxInt64 {
			return hashUint64(uint64(int64(v.f)))
		}
		return hashUint64(math.Float64bits(v.f))
	case KindStr:
		return hashString(v.s)
	case KindBytes:
		return hashString(v.s) ^ 0xb5297a4d
	case KindSet:
		return v.set.hash()
	case KindObject:
		if h, ok := v.obj.(Hasher); ok {
			return h.Hash()
		}
		return hashString(fmt.Sprintf("%T:%v", v.obj, v.obj))
	case KindFunc:
		return hashString(fmt.Sprintf("%p", v.fn))
	case KindAuthz:
		return hashString(fmt.Sprintf("%p", v.az))
	}
	return 0
}

// String renders v for diagnostics and the str() builtin.
func (v Value) String() string {
	switch v.kind {
	case KindNothing:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindStr:
		return v.s
	case KindBytes:
		return string(v.s)
	case KindSet:
		return v.set.String()
	case KindObject:
		if s, ok := v.obj.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("<object %T>", v.obj)
	case KindFunc:
		return fmt.Sprintf("<function %s>", v.fn.Name())
	case KindAuthz:
		return v.az.String()
	}
	return "<invalid>"
}

// objectsIdentical is the equality fallback for host objects without the
// Equaler capability. Comparable dynamic types compare by value; anything
// else (maps, slices, functions) is never equal, rather than panicking
// the way a bare interface comparison would.
func objectsIdentical(a, b Object) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() || ra.Type() != rb.Type() || !ra.Comparable() {
		return false
	}
	return ra.Equal(rb)
}

func hashUint64(x uint64) uint64 {
	// splitmix64 finalizer.
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func hashString(s string) uint64 {
	// FNV-1a.
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Set is an immutable, hashable set of values, the result of a set literal.
type Set struct {
	buckets map[uint64][]Value
	elems   []Value // insertion order, for deterministic rendering
}

// NewSet builds a set from the given elements, dropping duplicates.
func NewSet(elems ...Value) *Set {
	s := &Set{buckets: make(map[uint64][]Value, len(elems))}
	for _, e := range elems {
		s.insert(e)
	}
	return s
}

// SetValue builds a set value from the given elements.
func SetValue(elems ...Value) Value {
	return Value{kind: KindSet, set: NewSet(elems...)}
}

func (s *Set) insert(e Value) {
	h := e.Hash()
	for _, have := range s.buckets[h] {
		if have.Equal(e) {
			return
		}
	}
	s.buckets[h] = append(s.buckets[h], e)
	s.elems = append(s.elems, e)
}

// Len returns the number of elements.
func (s *Set) Len() int { return len(s.elems) }

// Contains reports membership of e.
func (s *Set) Contains(e Value) bool {
	for _, have := range s.buckets[e.Hash()] {
		if have.Equal(e) {
			return true
		}
	}
	return false
}

// Elems returns the elements in insertion order. The slice is shared; do
// not mutate it.
func (s *Set) Elems() []Value { return s.elems }

func (s *Set) equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, e := range s.elems {
		if !o.Contains(e) {
			return false
		}
	}
	return true
}

func (s *Set) hash() uint64 {
	// Order-independent combination so {1,2} and {2,1} hash alike.
	var h uint64 = 0x53e75
	for _, e := range s.elems {
		h ^= hashUint64(e.Hash())
	}
	return h
}

// union, intersect, difference and symmetricDifference implement the set
// forms of the |, &, - and ^ operators.
func (s *Set) union(o *Set) *Set {
	out := NewSet(s.elems...)
	for _, e := range o.elems {
		out.insert(e)
	}
	return out
}

func (s *Set) intersect(o *Set) *Set {
	out := NewSet()
	for _, e := range s.elems {
		if o.Contains(e) {
			out.insert(e)
		}
	}
	return out
}

func (s *Set) difference(o *Set) *Set {
	out := NewSet()
	for _, e := range s.elems {
		if !o.Contains(e) {
			out.insert(e)
		}
	}
	return out
}

func (s *Set) symmetricDifference(o *Set) *Set {
	out := s.difference(o)
	for _, e := range o.elems {
		if !s.Contains(e) {
			out.insert(e)
		}
	}
	return out
}

// String renders the set in literal syntax.
func (s *Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range s.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.Kind() == KindStr {
			b.WriteString(strconv.Quote(e.AsStr()))
		} else {
			b.WriteString(e.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}
