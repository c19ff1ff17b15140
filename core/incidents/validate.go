package incidents

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	TitleMinLength         = 10
	TitleMaxLength         = 70
	LocationMaxLength      = 200
	PartiesCreateMaxLength = 500
	PartiesUpdateMaxLength = 1000
	futureTolerance        = 24 * time.Hour
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return invalid(fieldMessage(verrs[0]))
	}
	return invalid(err.Error())
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fe.Field() + " is invalid"
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < TitleMinLength || n > TitleMaxLength {
		return invalid(fmt.Sprintf("title must be between %d and %d characters", TitleMinLength, TitleMaxLength))
	}
	return nil
}

func validateMaxLength(field string, value *string, limit int) error {
	if value != nil && utf8.RuneCountInString(*value) > limit {
		return invalid(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

func validateIncidentAt(at *time.Time, now time.Time) error {
	if at != nil && at.After(now.Add(futureTolerance)) {
		return invalid("incidentAt cannot be more than 24 hours in the future")
	}
	return nil
}

// trimOptional trims v and maps blank values to nil.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
