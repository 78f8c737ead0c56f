package console

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"runtime"
	"strings"
	"unicode/utf8"
)

// Markers substituted for values that can not be represented.
const (
	CircularMarker       = "[Circular]"
	UnserializableMarker = "[Unserializable]"
)

// slog stops resolving LogValuer chains after the same number of hops.
const maxLogValuerHops = 100

// Serialize converts an arbitrary value to an acyclic tree of nil, bool, numbers, strings,
// []any and map[string]any that is safe to keep and to encode as JSON.
//
// Serialize never panics. A value that panics while being converted is replaced
// with UnserializableMarker without affecting its siblings, and a pointer, map or slice
// that was already visited during the same call is replaced with CircularMarker.
func Serialize(v any) (out any) {
	defer func() {
		if recover() != nil {
			out = UnserializableMarker
		}
	}()

	s := newSerializer()
	return s.any(v)
}

func serializeAttrs(attrs []slog.Attr) (out any) {
	defer func() {
		if recover() != nil {
			out = UnserializableMarker
		}
	}()

	s := newSerializer()
	return s.attrs(attrs)
}

type visit struct {
	typ reflect.Type
	ptr uintptr
	len int
}

type serializer struct {
	seen map[visit]struct{}
}

func newSerializer() *serializer {
	return &serializer{seen: make(map[visit]struct{})}
}

// guarded converts a nested value, a panic replaces only this value.
func (s *serializer) guarded(v any) (out any) {
	defer func() {
		if recover() != nil {
			out = UnserializableMarker
		}
	}()
	return s.any(v)
}

func (s *serializer) any(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if rv.IsNil() {
			return nil
		}
	}

	switch t := v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t
	case float64:
		return finite(t, t)
	case float32:
		return finite(float64(t), t)
	case slog.Value:
		return s.slogValue(t)
	case slog.LogValuer:
		return s.logValuer(t)
	case error:
		return s.error(t)
	}

	if rv.Kind() == reflect.Func {
		return "[Function " + funcName(rv) + "]"
	}

	switch t := v.(type) {
	case encoding.TextMarshaler:
		text, err := t.MarshalText()
		if err != nil {
			return UnserializableMarker
		}
		return string(text)
	case fmt.Stringer:
		return t.String()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float(), rv.Float())
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprint(v)
	case reflect.String:
		return rv.String()
	case reflect.Pointer:
		// every pointer to a zero-size value may share one address
		if rv.Type().Elem().Size() > 0 && s.visited(rv) {
			return CircularMarker
		}
		return s.any(rv.Elem().Interface())
	case reflect.Interface:
		return s.any(rv.Elem().Interface())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return bytesValue(rv.Bytes())
		}
		if rv.Len() > 0 && s.visited(rv) {
			return CircularMarker
		}
		return s.list(rv)
	case reflect.Array:
		return s.list(rv)
	case reflect.Map:
		if s.visited(rv) {
			return CircularMarker
		}
		return s.mapping(rv)
	case reflect.Struct:
		return s.structure(rv)
	default:
		return "[" + rv.Type().String() + "]"
	}
}

func (s *serializer) visited(rv reflect.Value) bool {
	k := visit{typ: rv.Type(), ptr: rv.Pointer()}
	if rv.Kind() == reflect.Slice {
		k.len = rv.Len()
	}
	if _, ok := s.seen[k]; ok {
		return true
	}
	s.seen[k] = struct{}{}
	return false
}

func (s *serializer) list(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = s.guarded(rv.Index(i).Interface())
	}
	return out
}

// mapping uses the formatted keys. Distinct keys formatted the same, such as 1 and "1",
// all get their type appended so that the result does not depend on the iteration order.
func (s *serializer) mapping(rv reflect.Value) map[string]any {
	type pair struct{ key, value reflect.Value }

	pairs := make(map[string][]pair, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		pairs[k] = append(pairs[k], pair{iter.Key(), iter.Value()})
	}

	out := make(map[string]any, rv.Len())
	for k, same := range pairs {
		if len(same) == 1 {
			out[k] = s.guarded(same[0].value.Interface())
			continue
		}
		for _, p := range same {
			out[k+" ("+keyType(p.key)+")"] = s.guarded(p.value.Interface())
		}
	}
	return out
}

func keyType(key reflect.Value) string {
	if key.Kind() == reflect.Interface && !key.IsNil() {
		key = key.Elem()
	}
	return key.Type().String()
}

func (s *serializer) structure(rv reflect.Value) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		key := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				key = name
			}
		}
		out[key] = s.guarded(rv.Field(i).Interface())
	}
	return out
}

func (s *serializer) error(err error) map[string]any {
	out := map[string]any{
		"name":    errorName(err),
		"message": err.Error(),
	}
	if stack := errorStack(err); stack != "" {
		out["stack"] = stack
	}
	return out
}

func (s *serializer) logValuer(lv slog.LogValuer) any {
	v := lv.LogValue()
	for i := 0; v.Kind() == slog.KindLogValuer; i++ {
		if i >= maxLogValuerHops {
			return UnserializableMarker
		}
		v = v.LogValuer().LogValue()
	}
	return s.slogValue(v)
}

func (s *serializer) slogValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindGroup:
		return s.attrs(v.Group())
	case slog.KindLogValuer:
		return s.logValuer(v.LogValuer())
	default:
		return s.any(v.Any())
	}
}

// attrs converts attributes to a map, groups become nested maps and groups with an empty key are inlined.
func (s *serializer) attrs(attrs []slog.Attr) map[string]any {
	res := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if isEmptyAttr(a) {
			continue
		}

		if a.Value.Kind() == slog.KindGroup {
			group := a.Value.Group()
			if len(group) == 0 {
				continue
			}
			if a.Key == "" {
				for k, v := range s.attrs(group) {
					res[k] = v
				}
				continue
			}
			res[a.Key] = s.attrs(group)
			continue
		}
		res[a.Key] = s.guarded(a.Value)
	}
	return res
}

func isEmptyAttr(a slog.Attr) bool {
	return a.Key == "" && a.Value.Kind() == slog.KindAny && a.Value.Any() == nil
}

func errorName(err error) string {
	return strings.TrimPrefix(reflect.TypeOf(err).String(), "*")
}

// errorStack returns the detailed form of the error if its formatter adds anything, e.g. a stack trace.
func errorStack(err error) string {
	detailed := fmt.Sprintf("%+v", err)
	if detailed == err.Error() {
		return ""
	}
	return detailed
}

func finite(f float64, orig any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return orig
}

func bytesValue(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func funcName(rv reflect.Value) string {
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "anonymous"
	}

	name := fn.Name()
	name = name[strings.LastIndex(name, "/")+1:]
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || isClosure(name[strings.LastIndex(name, ".")+1:]) {
		return "anonymous"
	}
	return name
}

// isClosure detects compiler generated closure names like "func1" or the nested "2".
func isClosure(segment string) bool {
	digits := strings.TrimPrefix(segment, "func")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
