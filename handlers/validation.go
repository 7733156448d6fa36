package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"user-service/middleware"
	"user-service/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		default:
			return name
		}
	})
	_ = v.RegisterValidation("maxbytes", maxBytes)
	return v
}

// maxBytes bounds the UTF-8 encoded length; bcrypt rejects passwords over
// 72 bytes regardless of how many characters they hold.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// validateRequest reports failed constraints as a 400 whose data maps each
// JSON field to its first failure.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return badRequest("Invalid request payload", err)
	}

	fields := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		if _, seen := fields[fieldErr.Field()]; !seen {
			fields[fieldErr.Field()] = fieldMessage(fieldErr)
		}
	}
	return middleware.NewAppError(http.StatusBadRequest, "Validation failed", err).
		WithCode(models.ErrCodeValidation).
		WithDetails(fields)
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fieldErr.Param())
	default:
		return "is invalid"
	}
}
