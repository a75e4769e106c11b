// Package validation decodes request bodies into bounded, typed structures.
//
// Unknown JSON fields are ignored. Types implementing Defaulter get their
// defaults filled in before the struct tags are checked. Failures come back
// as *Errors, a field → messages report keyed by JSON field path.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// BodyField 无法解析的请求体错误挂在这个字段下
const BodyField = "body"

// Defaulter 在校验前填充缺省值
type Defaulter interface {
	ApplyDefaults()
}

// Errors 字段级校验错误
type Errors struct {
	Fields map[string][]string
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *Errors) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator 共享的 validator 实例, 字段名取 json tag
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
			return field.Name
		})
	})
	return validate
}

// Decode 解析并校验 raw
func Decode[T any](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, decodeError(err)
	}
	if err := Struct(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Struct 填充默认值后按 tag 校验
func Struct(v any) error {
	if d, ok := v.(Defaulter); ok {
		d.ApplyDefaults()
	}
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Errors{}
	for _, fe := range fieldErrs {
		out.add(fieldPath(fe), message(fe))
	}
	return out
}

func decodeError(err error) *Errors {
	out := &Errors{}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		out.add(typeErr.Field, fmt.Sprintf("expected %s, received %s", typeErr.Type.Kind(), typeErr.Value))
		return out
	}
	out.add(BodyField, "request body must be a JSON object: "+err.Error())
	return out
}

// fieldPath 去掉顶层结构体名, 例如 StreamRequest.conversation[3].content → conversation[3].content
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	kind := fe.Kind()
	unit := ""
	switch kind {
	case reflect.String:
		unit = " character(s)"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " item(s)"
	}
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if unit != "" {
			return fmt.Sprintf("must contain at least %s%s", fe.Param(), unit)
		}
		return "must be greater than or equal to " + fe.Param()
	case "max":
		if unit != "" {
			return fmt.Sprintf("must contain at most %s%s", fe.Param(), unit)
		}
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
