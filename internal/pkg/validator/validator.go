package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Spot codes are a row letter followed by a two digit number, e.g. "A01".
var spotCodePattern = regexp.MustCompile(`^[A-Za-z][0-9]{2}$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("spotcode", func(fl validator.FieldLevel) bool {
		return spotCodePattern.MatchString(fl.Field().String())
	})
}

// Validate struct fields
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field()] = e.Tag()
	}
	return out
}
