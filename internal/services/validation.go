package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"picocompta/internal/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("activity", func(fl validator.FieldLevel) bool {
		_, err := core.ParseActivityType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("frequency", func(fl validator.FieldLevel) bool {
		return core.Frequency(fl.Field().Int()).IsValid()
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDecimalToCents(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// validateStruct runs the struct tags of s and converts failures into a
// *core.ValidationError listing every invalid field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &core.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), messageFor(fe))
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "activity":
		return "must be one of BIC marchandise, BIC service, BNC"
	case "frequency":
		return "must be 1 (monthly) or 3 (quarterly)"
	case "amount":
		return "must be a positive amount"
	case "isodate":
		return "must be a date (YYYY-MM-DD)"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must be " + fe.Param() + " characters long"
	case "numeric":
		return "must contain digits only"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
