package service

import (
	"todoapp/internal/domain/errors"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// Validate checks req against its struct tags and reports the first failing
// field as the matching domain error.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return fieldError(err)
	}
	return nil
}

func fieldError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			case "Priority":
				return errors.ErrInvalidPriority
			case "Category":
				return errors.ErrInvalidCategory
			}
		}
	}
	return errors.ErrValidationFailed
}
