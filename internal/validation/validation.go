// Package validation turns go-playground validator failures into the
// {property, constraints, value} list returned to API clients.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Property    string            `json:"property"`
	Constraints map[string]string `json:"constraints"`
	Value       any               `json:"value"`
}

// Errors is a collected list of field failures. It is never short-circuited.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		for _, msg := range fe.Constraints {
			parts = append(parts, msg)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Validator struct {
	validate *validator.Validate
	enums    map[string]string
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, enums: make(map[string]string)}
}

// RegisterEnum adds a validation tag that accepts only values for which allowed
// returns true. Failures are reported under the isEnum constraint with message.
func (v *Validator) RegisterEnum(tag, message string, allowed func(string) bool) error {
	err := v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return allowed(fl.Field().String())
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", tag, err)
	}
	v.enums[tag] = message
	return nil
}

// Struct validates s and returns every failing field, or nil.
func (v *Validator) Struct(s any) Errors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Property: "body", Constraints: map[string]string{"invalid": err.Error()}}}
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		key, msg := v.describe(fe)
		out = append(out, FieldError{
			Property:    fe.Field(),
			Constraints: map[string]string{key: msg},
			Value:       fe.Value(),
		})
	}
	return out
}

func (v *Validator) describe(fe validator.FieldError) (string, string) {
	field := fe.Field()
	if msg, ok := v.enums[fe.Tag()]; ok {
		return "isEnum", msg
	}

	switch fe.Tag() {
	case "required":
		return "isNotEmpty", field + " should not be empty"
	case "min":
		if fe.Kind() == reflect.String {
			return "minLength", fmt.Sprintf("%s must be longer than or equal to %s characters", field, fe.Param())
		}
		return "min", fmt.Sprintf("%s must not be less than %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return "maxLength", fmt.Sprintf("%s must be shorter than or equal to %s characters", field, fe.Param())
		}
		return "max", fmt.Sprintf("%s must not be greater than %s", field, fe.Param())
	case "gt":
		return "isPositive", field + " must be a positive number"
	case "numeric":
		return "isNumberString", field + " must be a number string"
	case "email":
		return "isEmail", field + " must be an email"
	}
	return fe.Tag(), fmt.Sprintf("%s failed the %s constraint", field, fe.Tag())
}
