package rules

import "fmt"

// FromGo converts a plain Go value (the JSON-shaped types callers bind
// variables with) into an engine Value:
//
//	nil            -> Nothing
//	bool           -> Bool
//	ints, float64  -> Int / Float
//	string         -> Str
//	[]byte         -> Bytes
//	[]any          -> Set (membership is the dominant policy use)
//	map[string]any -> MapObject
//
// Values and Objects pass through unchanged; anything else is wrapped as
// an opaque Object.
func FromGo(v any) Value {
	switch v := v.(type) {
	case nil:
		return Nothing
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return Int(int64(v))
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return Str(v)
	case []byte:
		return Bytes(v)
	case []any:
		elems := make([]Value, 0, len(v))
		for _, e := range v {
			elems = append(elems, FromGo(e))
		}
		return SetValue(elems...)
	case []string:
		elems := make([]Value, 0, len(v))
		for _, e := range v {
			elems = append(elems, Str(e))
		}
		return SetValue(elems...)
	case map[string]any:
		m := make(MapObject, len(v))
		for k, e := range v {
			m[k] = FromGo(e)
		}
		return ObjectValue(m)
	case map[string]Value:
		return ObjectValue(MapObject(v))
	case *Func:
		return FuncValue(v)
	case *Authorization:
		return AuthzValue(v)
	default:
		return ObjectValue(v)
	}
}

// FromGoMap converts a whole variable binding map.
func FromGoMap(vars map[string]any) map[string]Value {
	out := make(map[string]Value, len(vars))
	for k, v := range vars {
		out[k] = FromGo(v)
	}
	return out
}

// ToGo converts an engine Value back into plain Go data. Sets become
// slices in insertion order; authorizations become a map with "verdict"
// and "attrs" keys; functions and opaque objects render as strings.
func ToGo(v Value) any {
	switch v.Kind() {
	case KindNothing:
		return nil
	case KindBool:
		return v.AsBool()
	case KindInt:
		return v.AsInt()
	case KindFloat:
		return v.AsFloat()
	case KindStr:
		return v.AsStr()
	case KindBytes:
		return v.AsBytes()
	case KindSet:
		elems := v.AsSet().Elems()
		out := make([]any, 0, len(elems))
		for _, e := range elems {
			out = append(out, ToGo(e))
		}
		return out
	case KindObject:
		if m, ok := v.AsObject().(MapObject); ok {
			out := make(map[string]any, len(m))
			for k, e := range m {
				out[k] = ToGo(e)
			}
			return out
		}
		return fmt.Sprintf("%v", v.AsObject())
	case KindFunc:
		return v.String()
	case KindAuthz:
		az := v.AsAuthz()
		attrs := make(map[string]any)
		for k, e := range az.Attrs() {
			attrs[k] = ToGo(e)
		}
		return map[string]any{"verdict": az.Verdict(), "attrs": attrs}
	}
	return nil
}
