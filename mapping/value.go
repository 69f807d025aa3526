package mapping

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// IsNull reports whether v counts as null: nil, a nil pointer, map, slice,
// interface, func or channel, or the empty string.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	return isNullValue(reflect.ValueOf(v))
}

func isNullValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	case reflect.String:
		return v.Len() == 0
	}
	return false
}

// pointerOf returns a pointer to instance's value and the element type. Values
// that are not pointers are copied into a fresh pointer.
func pointerOf(instance any) (reflect.Value, reflect.Type) {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer {
		return v, v.Type().Elem()
	}
	return addressable(v), v.Type()
}

// addressable returns a pointer to v, reusing v's address when it has one.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// expand returns the elements of slices, arrays and maps, and v itself
// otherwise. Byte slices are scalars. Map values are ordered by key.
func expand(v any) []any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{v}
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, rv.MapIndex(k).Interface())
		}
		return out
	}
	return []any{v}
}

// ignoredBy reports whether t's package path matches one of prefixes. A
// prefix ending in "/" matches any package below it; otherwise it matches the
// package itself and its sub-packages.
func ignoredBy(t reflect.Type, prefixes []string) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	if pkg == "" {
		return false
	}
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(pkg, prefix) {
				return true
			}
			continue
		}
		if pkg == prefix || strings.HasPrefix(pkg, prefix+"/") {
			return true
		}
	}
	return false
}

// stringify returns the string form used for identifiers.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(v)
}
