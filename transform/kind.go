package transform

import "reflect"

func stringKind(in any) (string, bool) {
	v := reflect.ValueOf(in)
	if v.Kind() == reflect.String {
		return v.String(), true
	}
	return "", false
}
