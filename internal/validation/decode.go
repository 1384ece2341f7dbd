package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
)

var ErrMalformedBody = errors.New("request body must be a valid JSON object")

const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON object from r into dst, a pointer to a struct.
// Values of the wrong JSON type leave their field at its zero value and are
// returned as field errors, one per offending property, so the caller can
// report them next to its own validation failures. Only bodies that are not
// a JSON object fail with ErrMalformedBody.
func DecodeJSON(r io.Reader, dst any) (Errors, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, ErrMalformedBody
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var ute *json.UnmarshalTypeError
		if !errors.As(err, &ute) {
			return nil, ErrMalformedBody
		}
	}

	// The decoder only reports the first type mismatch; decode each
	// property on its own to collect all of them.
	target := reflect.TypeOf(dst).Elem()
	var typeErrs Errors
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		single, err := json.Marshal(map[string]json.RawMessage{key: fields[key]})
		if err != nil {
			return nil, ErrMalformedBody
		}
		var ute *json.UnmarshalTypeError
		if errors.As(json.Unmarshal(single, reflect.New(target).Interface()), &ute) {
			typeErrs = append(typeErrs, TypeError(ute))
		}
	}
	return typeErrs, nil
}

// TypeError describes a JSON value that could not be stored in its field.
func TypeError(ute *json.UnmarshalTypeError) FieldError {
	field := ute.Field
	key, msg := "isValidType", field+" has an invalid type"

	switch ute.Type.Kind() {
	case reflect.String:
		key, msg = "isString", field+" must be a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		key, msg = "isInt", field+" must be an integer number"
	case reflect.Float32, reflect.Float64:
		key, msg = "isNumber", field+" must be a number"
	case reflect.Bool:
		key, msg = "isBoolean", field+" must be a boolean value"
	}

	return FieldError{
		Property:    field,
		Constraints: map[string]string{key: msg},
		Value:       ute.Value,
	}
}

// Merge folds extra into errs. Failures on a property already present are
// added to its constraints; the rest are appended in order.
func Merge(errs, extra Errors) Errors {
	if len(extra) == 0 {
		return errs
	}

	out := make(Errors, 0, len(errs)+len(extra))
	index := make(map[string]int, len(errs))
	for _, fe := range errs {
		index[fe.Property] = len(out)
		fe.Constraints = maps.Clone(fe.Constraints)
		out = append(out, fe)
	}

	for _, fe := range extra {
		i, ok := index[fe.Property]
		if !ok {
			index[fe.Property] = len(out)
			out = append(out, fe)
			continue
		}
		if out[i].Constraints == nil {
			out[i].Constraints = make(map[string]string, len(fe.Constraints))
		}
		maps.Copy(out[i].Constraints, fe.Constraints)
		if fe.Value != nil {
			out[i].Value = fe.Value
		}
	}
	return out
}
