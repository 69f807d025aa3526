package mapping

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// LiteralFor returns the typed literal for v. Booleans, integers, floats and
// timestamps keep their XSD datatype; strings, string-kinded enums and
// fmt.Stringers become plain literals.
func LiteralFor(v any) Term {
	switch x := v.(type) {
	case time.Time:
		return Literal(x.UTC().Format(time.RFC3339Nano), XSDDateTime)
	case *time.Time:
		return Literal(x.UTC().Format(time.RFC3339Nano), XSDDateTime)
	case []byte:
		return Literal(string(x), "")
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Literal(strconv.FormatBool(rv.Bool()), XSDBoolean)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Literal(strconv.FormatInt(rv.Int(), 10), XSDInteger)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Literal(strconv.FormatUint(rv.Uint(), 10), XSDInteger)
	case reflect.Float32:
		return Literal(strconv.FormatFloat(rv.Float(), 'g', -1, 32), XSDDouble)
	case reflect.Float64:
		return Literal(strconv.FormatFloat(rv.Float(), 'g', -1, 64), XSDDouble)
	case reflect.String:
		return Literal(rv.String(), "")
	}

	if s, ok := v.(fmt.Stringer); ok {
		return Literal(s.String(), "")
	}
	return Literal(fmt.Sprint(v), "")
}
