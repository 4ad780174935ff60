package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// report fields by their JSON names so clients can map errors back to inputs
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ErrMalformedBody is returned when the request body is not valid JSON
var ErrMalformedBody = errors.New("malformed request body")

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrMalformedBody, err)
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   e.Namespace()[strings.Index(e.Namespace(), ".")+1:],
				Message: getErrorMessage(e),
			})
		}
	}

	return errs
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "Campo obrigatório"
	case "uuid", "uuid4":
		return "Identificador inválido"
	case "min":
		if e.Kind() == reflect.Slice {
			return "Informe ao menos " + e.Param() + " item(ns)"
		}
		return "Valor muito curto"
	case "max":
		return "Valor muito longo"
	case "gte":
		return "Valor deve ser maior ou igual a " + e.Param()
	case "lte":
		return "Valor deve ser menor ou igual a " + e.Param()
	case "gt":
		return "Valor deve ser maior que " + e.Param()
	case "lt":
		return "Valor deve ser menor que " + e.Param()
	default:
		return "Valor inválido"
	}
}
