package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// enum is implemented by string types restricted to a fixed set of values.
type enum interface {
	allowed() []string
}

// jsonChecker is implemented by types with a custom wire shape.
type jsonChecker interface {
	checkJSON(v any) error
}

var (
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	enumType       = reflect.TypeOf((*enum)(nil)).Elem()
	checkerType    = reflect.TypeOf((*jsonChecker)(nil)).Elem()
)

// checkSchema walks a generic JSON value (decoded with UseNumber) against
// the Go type it will be unmarshalled into and reports the first field that
// does not fit. A struct field is required unless it is a pointer or tagged
// omitempty.
func checkSchema(v any, t reflect.Type, path string) error {
	if t == rawMessageType {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		if v == nil {
			return nil
		}
		return checkSchema(v, t.Elem(), path)
	}
	if t.Implements(checkerType) {
		if err := reflect.Zero(t).Interface().(jsonChecker).checkJSON(v); err != nil {
			return &DecodeError{Path: path, Msg: err.Error()}
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeError(path, v, "object")
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitempty := jsonName(f)
			if name == "-" {
				continue
			}
			child := path + "." + name
			val, present := obj[name]
			if !present {
				if omitempty || f.Type.Kind() == reflect.Pointer {
					continue
				}
				return &DecodeError{Path: child, Msg: "missing field"}
			}
			if err := checkSchema(val, f.Type, child); err != nil {
				return err
			}
		}
	case reflect.Slice:
		arr, ok := v.([]any)
		if !ok {
			return typeError(path, v, "array")
		}
		for i, el := range arr {
			if err := checkSchema(el, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case reflect.String:
		s, ok := v.(string)
		if !ok {
			return typeError(path, v, "string")
		}
		if t.Implements(enumType) {
			allowed := reflect.Zero(t).Interface().(enum).allowed()
			if !slices.Contains(allowed, s) {
				return &DecodeError{
					Path: path,
					Msg:  fmt.Sprintf("unknown variant %q, expected one of %s", s, strings.Join(allowed, ", ")),
				}
			}
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			return typeError(path, v, "boolean")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(json.Number)
		if !ok {
			return typeError(path, v, "integer")
		}
		if _, err := n.Int64(); err != nil {
			return &DecodeError{Path: path, Msg: fmt.Sprintf("invalid value: %s, expected integer", n)}
		}
	case reflect.Float32, reflect.Float64:
		if _, ok := v.(json.Number); !ok {
			return typeError(path, v, "number")
		}
	}
	return nil
}

func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, slices.Contains(strings.Split(opts, ","), "omitempty")
}

func typeError(path string, v any, want string) error {
	return &DecodeError{Path: path, Msg: fmt.Sprintf("invalid type: %s, expected %s", jsonKind(v), want)}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
