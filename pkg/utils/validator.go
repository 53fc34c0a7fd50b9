package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	vinRegex     = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)

	filmTypes = map[string]bool{
		"standard": true,
		"premium":  true,
		"matte":    true,
		"colored":  true,
	}
)

// MaxZoneLength bounds a single PPF zone name
const MaxZoneLength = 64

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

var customRules = map[string]validator.Func{
	"zone": func(fl validator.FieldLevel) bool {
		return ValidateZone(fl.Field().String()) == nil
	},
	"vin": func(fl validator.FieldLevel) bool {
		return ValidateVIN(fl.Field().String()) == nil
	},
	"film_type": func(fl validator.FieldLevel) bool {
		return filmTypes[fl.Field().String()]
	},
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

// Validator returns the shared validator with the custom workflow rules registered:
//
//	zone      non-blank, no control characters, at most MaxZoneLength bytes
//	vin       17 characters, digits and capitals except I, O and Q
//	film_type one of the supported film types
//
// It panics if a rule cannot be registered.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		if err := registerRules(v, customRules); err != nil {
			panic(err)
		}

		validate = v
	})
	return validate
}

// ValidateStruct runs the shared validator and flattens failures into one
// readable line per field.
func ValidateStruct(s interface{}) []string {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return msgs
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "zone":
		return fmt.Sprintf("%s must be a non-blank zone name", field)
	case "vin":
		return fmt.Sprintf("%s is not a valid VIN", field)
	case "film_type":
		return fmt.Sprintf("%s %q is not a supported film type", field, fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ValidateZone validates a single PPF zone name
func ValidateZone(zone string) error {
	if strings.TrimSpace(zone) == "" {
		return fmt.Errorf("zone must not be blank")
	}
	if len(zone) > MaxZoneLength {
		return fmt.Errorf("zone exceeds %d characters: %s", MaxZoneLength, zone)
	}
	if controlRegex.MatchString(zone) {
		return fmt.Errorf("zone contains control characters")
	}
	return nil
}

// ValidateVIN validates a 17-character vehicle identification number
func ValidateVIN(vin string) error {
	if !vinRegex.MatchString(vin) {
		return fmt.Errorf("invalid VIN: %s", vin)
	}
	return nil
}

// IsFilmType reports whether s names a supported film type
func IsFilmType(s string) bool {
	return filmTypes[s]
}

// SanitizeString removes control characters from free text
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
