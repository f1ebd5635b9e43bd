package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/utils"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var errPasswordBytes = fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes)

// Validator returns the shared validator. Field errors are keyed by json
// name and the custom tags (incident_type, report_status, media_type,
// bcrypt_len) are registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("incident_type", func(fl validator.FieldLevel) bool {
			return model.IncidentType(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("report_status", func(fl validator.FieldLevel) bool {
			return model.ReportStatus(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("bcrypt_len", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= utils.MaxPasswordBytes
		})
		_ = v.RegisterValidation("media_type", func(fl validator.FieldLevel) bool {
			return model.MediaType(fl.Field().String()).IsValid()
		})
		validate = v
	})
	return validate
}

// Validate checks s against its validate tags. Failures come back as one
// validation *apperr.Error with a message per json field.
func Validate(s any) error { return validateStruct(s) }

// validateStruct runs the validator and converts its field errors into a
// single validation error.
func validateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("validate input", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return apperr.Validation("validation failed", fields)
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "incident_type":
		return "must be one of " + joinEnum(model.IncidentTypes)
	case "report_status":
		return "must be one of " + joinEnum(model.Statuses)
	case "media_type":
		return "must be image or video"
	case "bcrypt_len":
		return errPasswordBytes
	default:
		return "is invalid"
	}
}

func joinEnum[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
