package comments

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
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
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return invalid(fe.Field() + " is required")
		case "max":
			return invalid(fe.Field() + " must be at most " + fe.Param() + " characters")
		case "oneof":
			return invalid(fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", "))
		}
		return invalid(fe.Field() + " is invalid")
	}
	return invalid(err.Error())
}
