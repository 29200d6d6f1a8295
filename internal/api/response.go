package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Haabeel/lark-sync/internal/service"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error sends a JSON error response.
func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// errorJSON is an alias for Error (used by some handlers).
var errorJSON = Error

// mapServiceError translates a service error into the matching HTTP response.
func mapServiceError(c echo.Context, err error) error {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, service.ErrBadRequest):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrUnauthorized):
			status = http.StatusUnauthorized
		}
		return Error(c, status, svcErr.Code, svcErr.Message)
	}

	slog.Error("unhandled service error", "error", err)
	return Error(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
}
