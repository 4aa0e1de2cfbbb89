package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/ostrem/kasse/internal/domain"
)

// RequestValidator adapts go-playground/validator to echo's Validator
// interface, translating failures into field-level domain errors.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.Invalid("request.validate", "invalid request body")
	}

	var out error
	for _, fe := range invalid {
		out = domain.AddFieldError(out, fe.Field(), "failed on "+fe.Tag())
	}
	return out
}
