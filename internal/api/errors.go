package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// Client-facing error messages. Existing clients match on these strings.
const (
	msgEmptyMessage    = "Message cannot be empty"
	msgInvalidFormat   = "Invalid request format: "
	msgGenerationError = "An error occurred during text generation"
	msgFieldRequired   = "message: field required"
)

// writeError writes {"error": msg}. Validation and generation failures
// keep status 200 because existing clients only inspect the body.
func writeError(c *echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// writeValidationDetail mirrors the framework validation response of the
// generation endpoint.
func writeValidationDetail(c *echo.Context, detail string) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": detail})
}
