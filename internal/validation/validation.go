// Package validation checks request payloads and reports failures as *Error,
// which handlers translate into 400 responses.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is a client error: a missing or malformed field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a validation failure.
func IsValidation(err error) bool {
	var v *Error
	return errors.As(err, &v)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
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
	// integer: a whole number that fits the INTEGER columns it is stored in.
	if err := v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		f, ok := floatValue(fl.Field())
		if !ok {
			return false
		}
		return f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32
	}); err != nil {
		panic(err)
	}
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if n, ok := field.Interface().(Number); ok && n.Valid {
			return n.Value
		}
		return nil
	}, Number{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(Date); ok && d.Valid {
			return d.Time
		}
		return nil
	}, Date{})
	return v
}

// Struct validates s against its `validate` tags and returns the first failure.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	fe := errs[0]
	return &Error{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "integer":
		if f, ok := floatValue(reflect.ValueOf(fe.Value())); ok && (f > math.MaxInt32 || f < math.MinInt32) {
			return fmt.Sprintf("%s is out of range", fe.Field())
		}
		return fe.Field() + " must be a whole number"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func floatValue(v reflect.Value) (float64, bool) {
	if !v.IsValid() {
		return 0, false
	}
	if n, ok := v.Interface().(Number); ok {
		return n.Value, n.Valid
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}

// Number is an optional numeric field that accepts JSON numbers as well as
// numeric strings, since form clients submit "250" rather than 250.
// null and "" leave it unset.
type Number struct {
	Value float64
	Valid bool
}

func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*n = Number{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		raw = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", raw)
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Number) Int() int {
	return int(n.Value)
}

func (n Number) IntPtr() *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Value)
	return &v
}

func (n Number) UintPtr() *uint {
	if !n.Valid || n.Value < 0 {
		return nil
	}
	v := uint(n.Value)
	return &v
}

func (n Number) FloatPtr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}
