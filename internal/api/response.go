// Package api exposes the control-plane HTTP contract spec.md §6
// describes as "consumed, not implemented by the core": admin CRUD on
// Integrations, manual sync trigger, progress/status polling, a
// config-test endpoint, and the search-read contract with its
// primary-store fallback.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/partsform/syncengine/internal/validation"
)

// Response is the standard envelope every handler returns.
type Response struct {
	Data       interface{}        `json:"data,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
	Error      *ErrorBody         `json:"error,omitempty"`
	Meta       Meta               `json:"meta"`
}

// ErrorBody carries a machine-readable code alongside the message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta is response metadata common to every envelope.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

func meta() Meta {
	return Meta{Timestamp: time.Now().UTC()}
}

// SuccessResponse writes data under status with an empty error/validation.
func SuccessResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Data: data, Meta: meta()})
}

// ErrorResponse writes a plain message under code "ERROR".
func ErrorResponse(c echo.Context, status int, message string) error {
	return ErrorResponseWithCode(c, status, "ERROR", message)
}

// ErrorResponseWithCode writes a coded error.
func ErrorResponseWithCode(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{Error: &ErrorBody{Code: code, Message: message}, Meta: meta()})
}

// ValidationErrorResponse writes a failed validation.Result as a 422.
func ValidationErrorResponse(c echo.Context, result *validation.Result) error {
	return c.JSON(http.StatusUnprocessableEntity, Response{Validation: result, Meta: meta()})
}
