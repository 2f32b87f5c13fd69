package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so local and server errors look alike
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateValue runs struct validation on v, a pointer to a struct, or each
// element of a slice of structs. Other kinds carry no tags and always pass.
func (c *Client) validateValue(v reflect.Value) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return c.validate.Struct(v.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := c.validateValue(v.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

// validateDraft checks an outgoing body. A failing draft is reported the same
// way the server reports a 400.
func (c *Client) validateDraft(body any) *RequestError {
	err := c.validateValue(reflect.ValueOf(body))
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Fields: map[string]string{"body": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldKey(fe)] = fieldMessage(fe)
	}
	return &RequestError{Fields: fields}
}

// fieldKey is the dotted JSON path of the field below the top-level struct
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + fe.Param() + " is not set"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "alphanum":
		return "must contain only letters and numbers"
	default:
		return "is invalid"
	}
}

// decode unmarshals a 2xx body into out, then checks that every required key
// was present and that tagged values are valid.
// Failures are logged with whatever structural detail is available.
func (c *Client) decode(data []byte, out any, requestID, endpoint string) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 {
		if isEmptyStruct(out) {
			return nil
		}
		c.logger.Error("empty response body",
			"request_id", requestID,
			"endpoint", endpoint,
			"expected_type", typeName(out))
		return ErrDecode
	}
	if bytes.Equal(trimmed, []byte("null")) {
		c.logger.Error("null response body",
			"request_id", requestID,
			"endpoint", endpoint,
			"expected_type", typeName(out))
		return ErrDecode
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		attrs := []any{
			"request_id", requestID,
			"endpoint", endpoint,
			"expected_type", typeName(out),
			"error", err,
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			attrs = append(attrs, "offset", syntaxErr.Offset)
			c.logger.Error("response body is not valid JSON", attrs...)
		case errors.As(err, &typeErr):
			attrs = append(attrs,
				"field", typeErr.Field,
				"json_value", typeErr.Value,
				"go_type", typeErr.Type.String(),
				"offset", typeErr.Offset)
			c.logger.Error("type mismatch in response body", attrs...)
		default:
			c.logger.Error("failed to decode response body", attrs...)
		}
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := checkKeys(trimmed, reflect.TypeOf(out), ""); err != nil {
		c.logger.Error("response body missing key",
			"request_id", requestID,
			"endpoint", endpoint,
			"expected_type", typeName(out),
			"field", err.Key)
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := c.validateValue(reflect.ValueOf(out)); err != nil {
		attrs := []any{
			"request_id", requestID,
			"endpoint", endpoint,
			"expected_type", typeName(out),
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			attrs = append(attrs, "field", verrs[0].Namespace(), "tag", verrs[0].Tag())
		}
		c.logger.Error("response body missing required field", append(attrs, "error", err)...)
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// MissingKeyError reports a non-optional key absent from a response body
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key %q", e.Key)
}

var unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// checkKeys walks data alongside t and returns the first required key that is
// absent or null. Pointer, map, slice and interface fields are optional, as is
// any key tagged omitempty. Types with their own UnmarshalJSON (time.Time)
// are not looked into. data has already been decoded into t successfully.
func checkKeys(data []byte, t reflect.Type, path string) *MissingKeyError {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(unmarshalerType) || isNull(data) {
		return nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil
		}
		for i, item := range items {
			if err := checkKeys(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		var object map[string]json.RawMessage
		if err := json.Unmarshal(data, &object); err != nil {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" && opts == "" {
				continue
			}
			if name == "" {
				name = field.Name
			}
			key := name
			if path != "" {
				key = path + "." + name
			}

			raw, ok := object[name]
			if !ok || isNull(raw) {
				if optionalField(field, opts) {
					continue
				}
				return &MissingKeyError{Key: key}
			}
			if err := checkKeys(raw, field.Type, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func optionalField(field reflect.StructField, opts string) bool {
	switch field.Type.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "omitempty" {
			return true
		}
	}
	return false
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func isEmptyStruct(out any) bool {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct && t.NumField() == 0
}

func typeName(out any) string {
	t := reflect.TypeOf(out)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
