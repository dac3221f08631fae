package middleware

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// bodyField keys errors that concern the whole body
const bodyField = "__all__"

var setupOnce sync.Once

// SetupValidator configures gin's validator once: errors are keyed by JSON
// field name, and decimal.Decimal fields accept the numeric tags (gt, gte, lte...).
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			d, ok := field.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			f, _ := d.Float64()
			return f
		}, decimal.Decimal{})
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	return name
}

// BindingError turns a gin binding failure into a validation error keyed by field
func BindingError(err error) *shared.ValidationError {
	verr := &shared.ValidationError{}

	var (
		fieldErrs validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &fieldErrs):
		for _, e := range fieldErrs {
			verr.Add(fieldPath(e), fieldMessage(e))
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = bodyField
		}
		verr.Add(field, "Invalid value type")
	case errors.As(err, &syntaxErr):
		verr.Add(bodyField, "Malformed JSON body")
	default:
		verr.Add(bodyField, err.Error())
	}
	return verr
}

// fieldPath drops the root struct name: CreateQuoteRequest.items[0].quantity
// becomes items[0].quantity
func fieldPath(e validator.FieldError) string {
	if _, rest, ok := strings.Cut(e.Namespace(), "."); ok {
		return rest
	}
	return e.Field()
}

var tagMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
	"oneof":    "Must be one of: %s",
	"gt":       "Must be greater than %s",
	"gte":      "Must be greater than or equal to %s",
	"lt":       "Must be less than %s",
	"lte":      "Must be less than or equal to %s",
	"ne":       "Must not be %s",
}

func fieldMessage(e validator.FieldError) string {
	tag := e.Tag()
	if tag == "min" || tag == "max" {
		bound := map[string]string{"min": "at least", "max": "at most"}[tag]
		if e.Kind() == reflect.String {
			return "Must be " + bound + " " + e.Param() + " characters"
		}
		return "Must be " + bound + " " + e.Param()
	}
	msg, ok := tagMessages[tag]
	if !ok {
		return "Invalid value"
	}
	return strings.Replace(msg, "%s", e.Param(), 1)
}
