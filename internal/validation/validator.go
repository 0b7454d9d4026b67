// Package validation wraps go-playground/validator with JSON field names, an ISO-8601 tag and
// per-field messages suitable for the API's errors list.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one entry of a 400 response's errors list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequestValidationError carries every failed field of a request.
type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Add appends a field failure.
func (e *RequestValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when nothing failed, so callers can return it as an error directly.
func (e *RequestValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewError returns a single-field RequestValidationError.
func NewError(field, message string) *RequestValidationError {
	return &RequestValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Get returns the shared validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "query"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		_ = validate.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, _, err := ParseTimestamp(s)
			return err == nil
		})
	})
	return validate
}

// Struct validates s and returns a *RequestValidationError (never a bare validator error) on failure.
func Struct(s any) *RequestValidationError {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError("body", err.Error())
	}
	out := &RequestValidationError{}
	for _, fe := range verrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace ("CollectRequest.metadata.os" -> "metadata.os").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	f := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
	case "uri", "url", "http_url":
		return fmt.Sprintf("%s must be a valid URI", f)
	case "ip":
		return fmt.Sprintf("%s must be a valid IP address", f)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", f)
	case "iso8601":
		return fmt.Sprintf("%s must be a valid ISO 8601 date", f)
	default:
		return fmt.Sprintf("%s failed %s validation", f, fe.Tag())
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 date or date-time. Values without a zone are UTC.
// dateOnly reports a bare YYYY-MM-DD.
func ParseTimestamp(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	for i, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), i == len(timestampLayouts)-1, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid ISO 8601 timestamp %q", s)
}
