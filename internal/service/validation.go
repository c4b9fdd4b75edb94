package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

// requestValidations are the custom tags used by the request structs of
// this package.
var requestValidations = map[string]validator.Func{
	"markable_status": func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Markable()
	},
	"override_status": func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Terminal()
	},
	"term": func(fl validator.FieldLevel) bool {
		return models.Term(strings.ToLower(fl.Field().String())).Valid()
	},
	"bulk_mode": func(fl validator.FieldLevel) bool {
		mode := models.BulkOperationMode(fl.Field().String())
		return mode == models.BulkModeAtomic || mode == models.BulkModePartialOnError
	},
}

// newValidator returns validate, or a fresh validator when nil, with the
// class record tags registered and JSON field names in error messages.
func newValidator(validate *validator.Validate) *validator.Validate {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range requestValidations {
		_ = validate.RegisterValidation(tag, fn)
	}
	return validate
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
