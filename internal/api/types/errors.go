package types

import (
	"errors"
	"net/http"

	appErr "github.com/fabriclens/engine/pkg/errors"
)

// FromAppError converts an error into the wire error shape.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var ae *appErr.AppError
	if errors.As(err, &ae) {
		return &APIError{Code: string(ae.Code), Message: ae.Message, Details: ae.Meta}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}

// HTTPStatus maps error codes onto status codes.
func HTTPStatus(err error) int {
	switch {
	case appErr.IsCode(err, appErr.CodeInvalid), appErr.IsCode(err, appErr.CodeParse):
		return http.StatusBadRequest
	case appErr.IsCode(err, appErr.CodeNotFound):
		return http.StatusNotFound
	case appErr.IsCode(err, appErr.CodeConflict):
		return http.StatusConflict
	case appErr.IsCode(err, appErr.CodeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
