// Package validation turns struct-tag validation failures into field-keyed,
// user-facing messages.
package validation

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/example/bloodlink/internal/models"
)

var (
	validate  = newValidator()
	stripHTML = bluemonday.StrictPolicy()
	tenDigits = regexp.MustCompile(`^\d{10}$`)
)

// Errors collects validation failures keyed by JSON field name. Insertion
// order is kept so responses are stable.
type Errors struct {
	Fields map[string]string
	order  []string
}

// New returns an empty Errors.
func New() *Errors {
	return &Errors{Fields: map[string]string{}}
}

// Add records a message for field. The first message per field wins.
func (e *Errors) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
	e.order = append(e.order, field)
}

// Messages returns the messages in insertion order.
func (e *Errors) Messages() []string {
	out := make([]string, 0, len(e.order))
	for _, f := range e.order {
		out = append(out, e.Fields[f])
	}
	return out
}

// Error implements error.
func (e *Errors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Err returns nil when nothing was recorded.
func (e *Errors) Err() error {
	if e == nil || len(e.order) == 0 {
		return nil
	}
	return e
}

// AsErrors unwraps err into *Errors.
func AsErrors(err error) (*Errors, bool) {
	var verr *Errors
	ok := errors.As(err, &verr)
	return verr, ok
}

// Check validates v by its `validate` tags. The result is never nil so
// callers can add their own findings before calling Err.
func Check(v any) *Errors {
	errs := New()

	err := validate.Struct(v)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("_", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

// ValidPhone reports whether phone is exactly ten digits.
func ValidPhone(phone string) bool {
	return tenDigits.MatchString(phone)
}

// Sanitize strips markup from user supplied free text. Entities the policy
// escapes are decoded again so plain text like "St. John's" survives, and
// the policy reruns until decoding exposes no further markup.
func Sanitize(s string) string {
	cur := s
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(stripHTML.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(next)
		}
		cur = next
	}
	return strings.TrimSpace(stripHTML.Sanitize(cur))
}

const maxSanitizePasses = 4

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("bloodtype", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseBloodType(fl.Field().String())
		return ok
	})

	return v
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please add a %s", humanize(field))
	case "email":
		return "Please add a valid email"
	case "phone10":
		return "Please add a valid 10-digit phone number"
	case "bloodtype":
		return "Blood type must be one of " + bloodTypeList()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", capitalize(humanize(field)), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", capitalize(humanize(field)), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", capitalize(humanize(field)), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", capitalize(humanize(field)), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", capitalize(humanize(field)), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", capitalize(humanize(field)), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", capitalize(humanize(field)))
}

// humanize turns "bloodType" into "blood type".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte(' ')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func bloodTypeList() string {
	parts := make([]string, 0, len(models.BloodTypes))
	for _, t := range models.BloodTypes {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}
