package validator

import (
	"errors"
	"html"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

var (
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	initOnce  sync.Once

	spaces = regexp.MustCompile(`\s+`)
)

func Init() {
	initOnce.Do(func() {
		validate = validator.New()
		sanitizer = bluemonday.StrictPolicy()

		registerCustomTypes(validate)

		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerCustomTypes(engine)
		}
	})
}

func registerCustomTypes(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterCustomTypeFunc(nullDecimalValue, decimal.NullDecimal{})
}

// jsonFieldName reports fields by their wire name so clients see "sort_code", not "SortCode".
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// nullDecimalValue lets "required" treat an absent or null decimal as empty.
func nullDecimalValue(field reflect.Value) interface{} {
	if value, ok := field.Interface().(decimal.NullDecimal); ok && value.Valid {
		return value.Decimal.String()
	}
	return ""
}

func Validate(s interface{}) error {
	Init()
	return validate.Struct(s)
}

// MissingFields lists the fields that failed a "required" rule, in declaration order.
func MissingFields(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		if fieldErr.Tag() == "required" {
			fields = append(fields, fieldErr.Field())
		}
	}
	return fields
}

// SanitizeString strips markup and collapses whitespace for free-text shown on hosted pages.
func SanitizeString(s string) string {
	Init()
	return NormalizeSpaces(html.UnescapeString(sanitizer.Sanitize(s)))
}

func NormalizeSpaces(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
