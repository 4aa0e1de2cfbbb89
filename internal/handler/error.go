// Package handler exposes the storefront and back-office HTTP APIs.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ostrem/kasse/internal/domain"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID, domain.EIDENTITY:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT, domain.ETRANSITION, domain.ELOCKED:
		return http.StatusConflict
	case domain.ESELECTION, domain.EPARAMETER:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError writes a domain error as JSON. Validation errors carry
// per-field messages; internal errors hide their details.
func respondError(c echo.Context, err error) error {
	if fields := domain.GetValidationFields(err); fields != nil {
		return c.JSON(http.StatusBadRequest, errorBody{
			Code:    domain.EINVALID,
			Message: "validation failed",
			Fields:  fields,
		})
	}

	code := domain.ErrorCode(err)
	return c.JSON(ErrorCodeToHTTPStatus(code), errorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
	})
}
